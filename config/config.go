// Package config 提供服务配置的加载与装配（支持 YAML/JSON）。
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/simkit/core"
)

// Duration 支持 "5s" / "300ms" 形式的时长配置。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std 转回标准库时长。
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 是服务的完整配置。
type Config struct {
	// Snapshot 是向量库快照文件路径（空则无预建索引，走在线编码模式）
	Snapshot string `yaml:"snapshot" json:"snapshot"`

	Catalog struct {
		// Fixture 是本地商品目录 JSON 文件路径
		Fixture string `yaml:"fixture" json:"fixture"`
		// Feast 在线特征库（配置后优先于 Fixture）
		Feast struct {
			Host    string   `yaml:"host" json:"host"`
			Port    int      `yaml:"port" json:"port"`
			Project string   `yaml:"project" json:"project"`
			IDs     []string `yaml:"ids" json:"ids"` // 在售商品 ID 清单
		} `yaml:"feast" json:"feast"`
	} `yaml:"catalog" json:"catalog"`

	Encoder struct {
		Endpoint string   `yaml:"endpoint" json:"endpoint"`
		Dim      int      `yaml:"dim" json:"dim"`
		Timeout  Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"encoder" json:"encoder"`

	Cache struct {
		Kind    string   `yaml:"kind" json:"kind"` // memory / redis
		MaxSize int      `yaml:"max_size" json:"max_size"`
		TTL     Duration `yaml:"ttl" json:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr" json:"addr"`
			Password string `yaml:"password" json:"password"`
			DB       int    `yaml:"db" json:"db"`
		} `yaml:"redis" json:"redis"`
	} `yaml:"cache" json:"cache"`

	Engine struct {
		CandidateK        int      `yaml:"candidate_k" json:"candidate_k"`
		CatalogTimeout    Duration `yaml:"catalog_timeout" json:"catalog_timeout"`
		EncodeTimeout     Duration `yaml:"encode_timeout" json:"encode_timeout"`
		PreFilterCategory bool     `yaml:"pre_filter_category" json:"pre_filter_category"`
	} `yaml:"engine" json:"engine"`

	// Defaults 是查询参数的默认值，逐请求可覆盖
	Defaults *core.QueryOptions `yaml:"defaults" json:"defaults"`

	// Rules 是附加的 CEL 过滤表达式（命中即淘汰候选）
	Rules []string `yaml:"rules" json:"rules"`

	Personalize struct {
		SeedTimeout Duration `yaml:"seed_timeout" json:"seed_timeout"`
	} `yaml:"personalize" json:"personalize"`
}

// LoadFromYAML 从 YAML 文件加载配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return &cfg, nil
}

// LoadFromJSON 从 JSON 文件加载配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return &cfg, nil
}

// Options 返回查询参数默认值（未配置时用内置默认）。
func (c *Config) Options() core.QueryOptions {
	if c.Defaults != nil {
		return *c.Defaults
	}
	return core.DefaultOptions()
}

// Logger 可由调用方注入；为 nil 时用 slog.Default()。
func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
