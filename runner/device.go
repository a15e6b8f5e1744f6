package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
)

// DeviceLauncher issues one OCCA launch per box for kernels that carry a
// device body and falls back to the host loop for the rest.
type DeviceLauncher struct {
	Device  *gocca.OCCADevice
	Kernels map[string]*gocca.OCCAKernel
	log     *zap.Logger
	ownsDev bool
}

// NewDeviceLauncher wraps an existing device. The caller keeps ownership of
// device; Free releases only the compiled kernels.
func NewDeviceLauncher(device *gocca.OCCADevice, logger *zap.Logger) *DeviceLauncher {
	if device == nil {
		panic("DeviceLauncher requires a device")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceLauncher{
		Device:  device,
		Kernels: make(map[string]*gocca.OCCAKernel),
		log:     logger,
	}
}

func (d *DeviceLauncher) Name() string { return "device:" + d.Device.Mode() }

// ParallelFor launches k over the flat range bx.NumPts()*ncomp, waits for the
// device and copies the Out buffers back to the host.
func (d *DeviceLauncher) ParallelFor(bx amr.Box, ncomp int, k Kernel) error {
	if err := k.validate(); err != nil {
		return err
	}
	if k.Device == nil {
		k.runHost(bx, ncomp)
		return nil
	}
	kernel, err := d.build(k.Name, k.Device.Source)
	if err != nil {
		return err
	}

	var mems []*gocca.OCCAMemory
	defer func() {
		for _, m := range mems {
			m.Free()
		}
	}()
	args := []interface{}{int32(bx.NumPts() * ncomp)}
	for _, buf := range k.Device.In {
		m := d.malloc(buf)
		mems = append(mems, m)
		args = append(args, m)
	}
	outs := make([]*gocca.OCCAMemory, len(k.Device.Out))
	for i, buf := range k.Device.Out {
		outs[i] = d.malloc(buf)
		mems = append(mems, outs[i])
		args = append(args, outs[i])
	}
	args = append(args, k.Device.Scalars...)

	if err := kernel.RunWithArgs(args...); err != nil {
		return fmt.Errorf("kernel %s execution failed: %w", k.Name, err)
	}
	d.Device.Finish()

	for i, buf := range k.Device.Out {
		if len(buf) == 0 {
			continue
		}
		outs[i].CopyTo(unsafe.Pointer(&buf[0]), int64(len(buf)*8))
	}
	return nil
}

func (d *DeviceLauncher) malloc(buf []float64) *gocca.OCCAMemory {
	if len(buf) == 0 {
		return d.Device.Malloc(8, nil, nil)
	}
	return d.Device.Malloc(int64(len(buf)*8), unsafe.Pointer(&buf[0]), nil)
}

// build compiles a kernel once per name.
func (d *DeviceLauncher) build(name, source string) (*gocca.OCCAKernel, error) {
	if kernel, ok := d.Kernels[name]; ok {
		return kernel, nil
	}
	fullSource := Preamble() + source

	var kernel *gocca.OCCAKernel
	var err error
	if d.Device.Mode() == "OpenMP" {
		// OpenMP builds do not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.Device.BuildKernelFromString(fullSource, name, props)
	} else {
		kernel, err = d.Device.BuildKernelFromString(fullSource, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", name)
	}
	d.log.Debug("built device kernel", zap.String("kernel", name), zap.String("mode", d.Device.Mode()))
	d.Kernels[name] = kernel
	return kernel, nil
}

func (d *DeviceLauncher) Synchronize() { d.Device.Finish() }

// Free releases compiled kernels, and the device when the launcher created it.
func (d *DeviceLauncher) Free() {
	for name, kernel := range d.Kernels {
		kernel.Free()
		delete(d.Kernels, name)
	}
	if d.ownsDev {
		d.Device.Free()
	}
}
