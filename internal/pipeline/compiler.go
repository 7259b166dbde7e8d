package pipeline

import (
	"fmt"

	"fluxgate/internal/config"
	"fluxgate/internal/spec"
	"fluxgate/sink"
	sinkkafka "fluxgate/sink/kafka"
	"fluxgate/sink/logsink"
	"fluxgate/source/kafka"
)

// Compile loads a pipeline file and returns a runner with its source
// configured and its sinks ready. The source driver must be registered.
func Compile(path string) (*Runner, error) {
	cfg, confPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	kc, err := config.LoadKafkaConfig(confPath)
	if err != nil {
		return nil, err
	}
	return Build(cfg, kc)
}

// Build assembles a runner from an already parsed spec.
func Build(cfg spec.File, kc kafka.Config) (*Runner, error) {
	if cfg.Source.Kind != "kafka" {
		return nil, fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	src, err := kafka.NewAdapter(cfg.Source.Driver)
	if err != nil {
		return nil, err
	}

	r := NewRunner()
	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			_ = r.Close()
			return nil, err
		}

		switch name {
		case "log":
			var lc logsink.Config
			if err = cfg.SinkConfig(name, &lc); err == nil {
				err = sDrv.Configure(lc)
			}
		case "kafka":
			kcfg := sinkkafka.Config{Brokers: kc.Brokers, Acks: -1}
			if err = cfg.SinkConfig(name, &kcfg); err == nil {
				err = sDrv.Configure(kcfg)
			}
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("sink %s: %w", name, err)
		}
		r.AddSink(name, sDrv)
	}

	// connect last so a bad sink never leaves a joined consumer behind
	if err = src.Configure(kc); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("source %s: %w", cfg.Source.Driver, err)
	}
	r.SetSource(src)
	return r, nil
}
