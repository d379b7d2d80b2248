package audio

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBlock = 1024

var initOnce sync.Once

// portAudioStream wraps a live portaudio input stream.
type portAudioStream struct {
	st *portaudio.Stream
}

func (p *portAudioStream) Start() error { return p.st.Start() }
func (p *portAudioStream) Stop() error  { return p.st.Stop() }
func (p *portAudioStream) Close() error { return p.st.Close() }

// openPortAudioStream opens an input stream on the configured device.
// PortAudio is initialized once for the process lifetime; terminating it
// between recordings resets the device list on some hosts.
func openPortAudioStream(cfg Config, cb func(block []float32)) (stream, error) {
	var initErr error
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", initErr)
	}

	handler := func(in []float32) {
		cb(in)
	}

	if cfg.Device == "" {
		st, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), framesPerBlock, handler)
		if err != nil {
			return nil, fmt.Errorf("open default input stream: %w", err)
		}
		return &portAudioStream{st: st}, nil
	}

	dev, err := findInputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	slog.Info("using input device", "name", dev.Name)

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = framesPerBlock

	st, err := portaudio.OpenStream(params, handler)
	if err != nil {
		return nil, fmt.Errorf("open input stream on %q: %w", dev.Name, err)
	}
	return &portAudioStream{st: st}, nil
}

// findInputDevice returns the first input-capable device whose name
// contains the query, case-insensitively.
func findInputDevice(query string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	q := strings.ToLower(query)
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), q) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", query)
}
