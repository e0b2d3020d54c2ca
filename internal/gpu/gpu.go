// Package gpu discovers NVIDIA GPUs through NVML for the system summary.
// Machines without the NVIDIA driver simply report no GPUs.
package gpu

import (
	"codeberg.org/mutker/healthmon/internal/errors"
	"codeberg.org/mutker/healthmon/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Info describes one GPU. TemperatureC is -1 when it could not be read.
type Info struct {
	Index        int
	Name         string
	UUID         string
	TemperatureC int
}

// Probe initializes NVML, lists every device and shuts NVML down again.
func Probe(log logger.Logger) ([]Info, error) {
	return probe(&nvmlWrapper{}, log)
}

func probe(ctrl nvmlController, log logger.Logger) ([]Info, error) {
	if err := ctrl.Initialize(); err != nil {
		return nil, err
	}
	defer func() {
		if err := ctrl.Shutdown(); err != nil {
			log.Debug().Err(err).Msg("Failed to shut down NVML")
		}
	}()

	count, err := ctrl.GetDeviceCount()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, count)
	for i := 0; i < count; i++ {
		d, err := ctrl.GetDevice(i)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping GPU")
			continue
		}

		info, err := describe(i, d)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping GPU")
			continue
		}
		log.Debug().Str("name", info.Name).Int("index", i).Msg("Detected GPU")

		infos = append(infos, info)
	}

	return infos, nil
}

func describe(index int, d device) (Info, error) {
	errFactory := errors.New()

	name, ret := d.GetName()
	if !IsNVMLSuccess(ret) {
		return Info{}, errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	info := Info{Index: index, Name: name, TemperatureC: -1}

	if uuid, ret := d.GetUUID(); IsNVMLSuccess(ret) {
		info.UUID = uuid
	}
	if temp, ret := d.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		info.TemperatureC = int(temp)
	}

	return info, nil
}

// Names returns the names of all detected GPUs, or nil when NVML is
// unavailable.
func Names(log logger.Logger) []string {
	infos, err := Probe(log)
	if err != nil {
		log.Debug().Err(err).Msg("NVML unavailable")
		return nil
	}

	names := make([]string, 0, len(infos))
	for _, i := range infos {
		names = append(names, i.Name)
	}

	return names
}
