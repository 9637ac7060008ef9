package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/rclink/internal/protocol"
	"github.com/dbehnke/rclink/internal/pulses"
)

// moduleConfig holds one [Internal Module] / [External Module] section
type moduleConfig struct {
	moduleType     protocol.ModuleType
	rfProtocol     int8
	channelsStart  uint8
	channelsCount  int8
	ppmFrameLength int8
	failsafe       []int16
}

// Config represents the rclink configuration
type Config struct {
	filename string

	// Module sections
	modules [protocol.NUM_MODULES]moduleConfig

	// Radio section
	features pulses.Features

	// Serial section
	serialDevice      string
	serialBaudRate    uint32
	serialReadTimeout uint32

	// Telemetry section
	passthroughEnabled bool

	// Database section
	databaseEnabled      bool
	databasePath         string
	databaseFlushSeconds uint32
	databaseDebug        bool

	// Metrics section
	metricsEnabled bool
	metricsAddress string

	// Log section
	logDebug bool
}

// NewConfig creates a new configuration instance
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,
		// Set reasonable defaults
		features:          pulses.DefaultFeatures(),
		serialDevice:      "/dev/ttyUSB0",
		serialBaudRate:    400000,
		serialReadTimeout: 20,

		databaseEnabled:      false,
		databasePath:         "data/telemetry.db",
		databaseFlushSeconds: 10,

		metricsAddress: ":9110",
	}
}

// Load loads configuration from the specified file
func (c *Config) Load() error {
	file, err := os.Open(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", c.filename, err)
	}
	defer file.Close()

	return c.parseINI(file)
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	return c.parseINIString(data)
}

func (c *Config) parseINI(file *os.File) error {
	scanner := bufio.NewScanner(file)
	return c.parseINIScanner(scanner)
}

func (c *Config) parseINIString(data string) error {
	scanner := bufio.NewScanner(strings.NewReader(data))
	return c.parseINIScanner(scanner)
}

func (c *Config) parseINIScanner(scanner *bufio.Scanner) error {
	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' || line[0] == ';' {
			continue
		}

		// Check for section header
		if line[0] == '[' && line[len(line)-1] == ']' {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		// Parse key=value pairs
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch currentSection {
		case "Internal Module":
			c.parseModuleSection(&c.modules[protocol.INTERNAL_MODULE], key, value)
		case "External Module":
			c.parseModuleSection(&c.modules[protocol.EXTERNAL_MODULE], key, value)
		case "Radio":
			c.parseRadioSection(key, value)
		case "Serial":
			c.parseSerialSection(key, value)
		case "Telemetry":
			c.parseTelemetrySection(key, value)
		case "Database":
			c.parseDatabaseSection(key, value)
		case "Metrics":
			c.parseMetricsSection(key, value)
		case "Log":
			c.parseLogSection(key, value)
		}
	}

	return scanner.Err()
}

func (c *Config) parseModuleSection(m *moduleConfig, key, value string) {
	switch key {
	case "Type":
		m.moduleType = protocol.ParseModuleType(value)
	case "RFProtocol":
		if v, err := strconv.ParseInt(value, 10, 8); err == nil {
			m.rfProtocol = int8(v)
		}
	case "ChannelsStart":
		if v, err := strconv.ParseUint(value, 10, 8); err == nil && v < protocol.MAX_OUTPUT_CHANNELS {
			m.channelsStart = uint8(v)
		}
	case "ChannelsCount":
		if v, err := strconv.ParseInt(value, 10, 8); err == nil {
			m.channelsCount = int8(v)
		}
	case "PPMFrameLength":
		if v, err := strconv.ParseInt(value, 10, 8); err == nil {
			m.ppmFrameLength = int8(v)
		}
	case "Failsafe":
		m.failsafe = c.parseInt16Array(value)
	}
}

func (c *Config) parseRadioSection(key, value string) {
	switch key {
	case "InternalPPM":
		c.features.InternalPPM = c.parseBool(value)
	case "FlySky":
		c.features.FlySky = c.parseBool(value)
	case "DSM2":
		c.features.DSM2 = c.parseBool(value)
	case "Crossfire":
		c.features.Crossfire = c.parseBool(value)
	case "Multimodule":
		c.features.Multimodule = c.parseBool(value)
	case "AFHDS3":
		c.features.AFHDS3 = c.parseBool(value)
	}
}

func (c *Config) parseSerialSection(key, value string) {
	switch key {
	case "Device":
		c.serialDevice = value
	case "BaudRate":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.serialBaudRate = uint32(v)
		}
	case "ReadTimeout":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil {
			c.serialReadTimeout = uint32(v)
		}
	}
}

func (c *Config) parseTelemetrySection(key, value string) {
	switch key {
	case "Passthrough":
		c.passthroughEnabled = c.parseBool(value)
	}
}

func (c *Config) parseDatabaseSection(key, value string) {
	switch key {
	case "Enabled":
		c.databaseEnabled = c.parseBool(value)
	case "Path":
		c.databasePath = value
	case "FlushSeconds":
		if v, err := strconv.ParseUint(value, 10, 32); err == nil && v > 0 {
			c.databaseFlushSeconds = uint32(v)
		}
	case "Debug":
		c.databaseDebug = c.parseBool(value)
	}
}

func (c *Config) parseMetricsSection(key, value string) {
	switch key {
	case "Enabled":
		c.metricsEnabled = c.parseBool(value)
	case "Address":
		c.metricsAddress = value
	}
}

func (c *Config) parseLogSection(key, value string) {
	switch key {
	case "Debug":
		c.logDebug = c.parseBool(value)
	}
}

func (c *Config) parseBool(value string) bool {
	return value == "1" || strings.ToLower(value) == "true" || strings.ToLower(value) == "yes"
}

func (c *Config) parseInt16Array(value string) []int16 {
	parts := strings.Split(value, ",")
	result := make([]int16, 0, len(parts))

	for _, part := range parts {
		if v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 16); err == nil {
			result = append(result, int16(v))
		}
	}

	return result
}

// GetModel builds the module configuration snapshot the pulse controller uses
func (c *Config) GetModel() pulses.Model {
	var model pulses.Model
	for i, m := range c.modules {
		data := &model.Modules[i]
		data.Type = m.moduleType
		data.RFProtocol = m.rfProtocol
		data.ChannelsStart = m.channelsStart
		data.ChannelsCount = m.channelsCount
		data.PPMFrameLength = m.ppmFrameLength
		copy(data.Failsafe[:], m.failsafe)
	}
	return model
}

// Getter methods for module sections
func (c *Config) GetModuleType(port protocol.Port) protocol.ModuleType { return c.modules[port].moduleType }
func (c *Config) GetRFProtocol(port protocol.Port) int8                { return c.modules[port].rfProtocol }

// Getter methods for Radio section
func (c *Config) GetFeatures() pulses.Features { return c.features }

// Getter methods for Serial section
func (c *Config) GetSerialDevice() string   { return c.serialDevice }
func (c *Config) GetSerialBaudRate() uint32 { return c.serialBaudRate }
func (c *Config) GetSerialReadTimeout() time.Duration {
	return time.Duration(c.serialReadTimeout) * time.Millisecond
}

// Getter methods for Telemetry section
func (c *Config) GetPassthroughEnabled() bool { return c.passthroughEnabled }

// Getter methods for Database section
func (c *Config) GetDatabaseEnabled() bool { return c.databaseEnabled }
func (c *Config) GetDatabasePath() string  { return c.databasePath }
func (c *Config) GetDatabaseDebug() bool   { return c.databaseDebug }
func (c *Config) GetDatabaseFlushInterval() time.Duration {
	return time.Duration(c.databaseFlushSeconds) * time.Second
}

// Getter methods for Metrics section
func (c *Config) GetMetricsEnabled() bool   { return c.metricsEnabled }
func (c *Config) GetMetricsAddress() string { return c.metricsAddress }

// Getter methods for Log section
func (c *Config) GetLogDebug() bool { return c.logDebug }
