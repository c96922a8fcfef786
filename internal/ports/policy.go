package ports

import "time"

type Policy struct {
	NowWindow       time.Duration `yaml:"now_window"`
	Retention       time.Duration `yaml:"retention"`
	HistoryCapacity int           `yaml:"history_capacity"`
	CounterTimeout  time.Duration `yaml:"counter_timeout"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
}
