// confcheck загружает yaml-конфиг движка тем же путём, что и сам движок,
// проверяет обязательные поля и печатает итог. Удобно гонять перед деплоем.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const configsDir = "configs"

func load(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	path := filepath.Join(configsDir, file)
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fd.Close()

	if err := v.ReadConfig(fd); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return v, nil
}

func check(v *viper.Viper) error {
	if v.GetFloat64("risk_pct") <= 0 {
		return errors.New("risk_pct must be > 0")
	}
	if v.GetFloat64("stop_pct") <= 0 {
		return errors.New("stop_pct must be > 0")
	}
	if v.GetInt("max_open_positions") <= 0 {
		return errors.New("max_open_positions must be > 0")
	}
	if v.GetInt("history_capacity") < v.GetInt("history_window") {
		return errors.New("history_capacity must be >= history_window")
	}
	if d := v.GetDuration("tick_interval"); d <= 0 || d > time.Minute {
		return errors.Errorf("tick_interval out of range: %s", d)
	}
	roi := v.GetStringMap("roi")
	if len(roi) == 0 {
		return errors.New("roi table is empty")
	}
	return nil
}

func main() {
	file := "values_local.yaml"
	if f := os.Getenv("CONFIG_FILE"); f != "" {
		file = f
	}

	v, err := load(file)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	if err := check(v); err != nil {
		panic(fmt.Errorf("config invalid: %w", err))
	}

	bs, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		panic(fmt.Errorf("marshal config: %w", err))
	}
	fmt.Printf("--- %s ---\n%s", file, string(bs))
	fmt.Println("config ok")
}
