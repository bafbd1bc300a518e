package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr              string        // status API bind address
	LogDir            string        // logs directory
	LogLevel          string        // debug, info, warn, error
	TargetsFile       string        // YAML targets file watched for changes
	ReloadInterval    time.Duration // how often the targets file is checked
	DisplayInterval   time.Duration // how often the status table is printed
	MaxTasks          int           // task manager capacity
	MQTTBroker        string        // empty disables the heartbeat
	MQTTTopic         string        // heartbeat topic
	HeartbeatInterval time.Duration // heartbeat publish period
}

func FromEnv() Config {
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	targets := os.Getenv("TARGETS_FILE")
	if targets == "" {
		targets = "targets.yaml"
	}

	reload := 5 * time.Second
	if v := os.Getenv("RELOAD_CHECK_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			reload = time.Duration(n) * time.Second
		}
	}

	display := 5 * time.Second
	if v := os.Getenv("DISPLAY_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			display = time.Duration(n) * time.Second
		}
	}

	maxTasks := 128
	if v := os.Getenv("MAX_TASKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxTasks = n
		}
	}

	heartbeat := time.Second
	if v := os.Getenv("HEARTBEAT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			heartbeat = time.Duration(n) * time.Second
		}
	}

	return Config{
		Addr:              addr,
		LogDir:            logDir,
		LogLevel:          os.Getenv("LOG_LEVEL"),
		TargetsFile:       targets,
		ReloadInterval:    reload,
		DisplayInterval:   display,
		MaxTasks:          maxTasks,
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTTopic:         os.Getenv("MQTT_TOPIC"),
		HeartbeatInterval: heartbeat,
	}
}
