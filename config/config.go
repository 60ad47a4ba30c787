package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override the file.
const EnvPrefix = "TRANSCRIBER"

var validate = validator.New()

type Transcriber struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=json text"`
}

// Waveform sizes the main waveform and the envelopes generated for it.
// MaxWidth and MinDur set the envelope resolution: a window of MinDur
// seconds can be drawn MaxWidth pixels wide.
type Waveform struct {
	Width       int     `yaml:"width" validate:"gt=0"`
	Height      int     `yaml:"height" validate:"gt=0"`
	Beg         float64 `yaml:"beg" validate:"gte=0"`
	Dur         float64 `yaml:"dur" validate:"gt=0"`
	MaxWidth    float64 `yaml:"max_width" validate:"gt=0"`
	MinDur      float64 `yaml:"min_dur" validate:"gt=0"`
	Channel     int     `yaml:"channel" validate:"gte=0"`
	MaxChannels int     `yaml:"max_channels" validate:"gte=0"`
}

type Lanes struct {
	Width        int  `yaml:"width" validate:"gt=0"`
	AllowOverlap bool `yaml:"allow_overlap"`
}

type Server struct {
	Addr    string `yaml:"addr" validate:"required"`
	DataDir string `yaml:"data_dir"`
}

type Client struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Timeout int    `yaml:"timeout" validate:"gte=0"`
}

type Store struct {
	URL   string `yaml:"url" validate:"omitempty,url"`
	Key   string `yaml:"key"`
	Table string `yaml:"table" validate:"required"`
}

// Features controls the windowed speaking statistics, in seconds.
type Features struct {
	TimeWindow int `yaml:"time_window" validate:"gte=0"`
	Overlap    int `yaml:"overlap" validate:"gte=0"`
}

type Root struct {
	Transcriber Transcriber `yaml:"transcriber"`
	Waveform    Waveform    `yaml:"waveform"`
	Lanes       Lanes       `yaml:"lanes"`
	Server      Server      `yaml:"server"`
	Client      Client      `yaml:"client"`
	Store       Store       `yaml:"store"`
	Features    Features    `yaml:"features"`
	Paths       struct {
		Data    string `yaml:"data"`
		Outputs string `yaml:"outputs"`
	} `yaml:"paths"`
	Workers int `yaml:"workers" validate:"gte=0"`
}

// Default returns the settings used for anything the file leaves out.
func Default() *Root {
	c := &Root{
		Transcriber: Transcriber{Name: "transcriber", Version: "0.1.0", LogLevel: "info", LogFormat: "text"},
		Waveform: Waveform{
			Width:       800,
			Height:      100,
			Beg:         0,
			Dur:         10,
			MaxWidth:    1000,
			MinDur:      1,
			Channel:     0,
			MaxChannels: 1,
		},
		Lanes:    Lanes{Width: 800},
		Server:   Server{Addr: ":8080", DataDir: "data"},
		Client:   Client{BaseURL: "http://localhost:8080", Timeout: 60},
		Store:    Store{Table: "segments"},
		Features: Features{TimeWindow: 30, Overlap: 10},
		Workers:  4,
	}
	c.Paths.Data = "data"
	c.Paths.Outputs = "outputs"
	return c
}

// Load reads the config file over the defaults, applies the overrides
// known to v and validates the result. The file named by the "config" key
// of v is used when set; otherwise config/<CONFIG_ENV>/config.yaml and
// config.yaml are tried in turn and a missing file is not an error.
func Load(v *viper.Viper) (*Root, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if p := v.GetString("config"); p != "" {
		if err := decodeFile(p, cfg); err != nil {
			return nil, err
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
		for _, p := range guess {
			err := decodeFile(p, cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	override(v, cfg)
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Root) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config %s decode: %w", path, err)
	}
	return nil
}

// override copies the keys set in v, from the environment or from bound
// flags, into cfg.
func override(v *viper.Viper, cfg *Root) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flt := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	str("transcriber.log_level", &cfg.Transcriber.LogLevel)
	str("transcriber.log_format", &cfg.Transcriber.LogFormat)
	num("waveform.width", &cfg.Waveform.Width)
	num("waveform.height", &cfg.Waveform.Height)
	flt("waveform.beg", &cfg.Waveform.Beg)
	flt("waveform.dur", &cfg.Waveform.Dur)
	flt("waveform.max_width", &cfg.Waveform.MaxWidth)
	flt("waveform.min_dur", &cfg.Waveform.MinDur)
	num("waveform.channel", &cfg.Waveform.Channel)
	num("waveform.max_channels", &cfg.Waveform.MaxChannels)
	num("lanes.width", &cfg.Lanes.Width)
	if v.IsSet("lanes.allow_overlap") {
		cfg.Lanes.AllowOverlap = v.GetBool("lanes.allow_overlap")
	}
	str("server.addr", &cfg.Server.Addr)
	str("server.data_dir", &cfg.Server.DataDir)
	str("client.base_url", &cfg.Client.BaseURL)
	num("client.timeout", &cfg.Client.Timeout)
	str("store.url", &cfg.Store.URL)
	str("store.key", &cfg.Store.Key)
	str("store.table", &cfg.Store.Table)
	num("features.time_window", &cfg.Features.TimeWindow)
	num("features.overlap", &cfg.Features.Overlap)
	str("paths.data", &cfg.Paths.Data)
	str("paths.outputs", &cfg.Paths.Outputs)
	num("workers", &cfg.Workers)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
