package config

const (
	defaultConfigPath         = "~/.config/kahvi/config.toml"
	defaultStateDir           = "~/.local/share/kahvi"
	defaultLogDir             = "~/.local/share/kahvi/logs"
	defaultAveragingTime      = 5.0
	defaultPollInterval       = 0.01
	defaultDriver             = "auto"
	defaultCoffeeComingRatio  = 1.2
	defaultAnomalyRatio       = 0.5
	defaultDataPin            = 6
	defaultClockPin           = 5
	defaultGain               = 128
	defaultReadyTimeout       = 1.0
	defaultGPIODevice         = "/dev/gpiomem"
	defaultRangeQueryMaxItems = 1000
	defaultAPIBind            = "127.0.0.1:7390"
	defaultMQTTBroker         = "tcp://127.0.0.1:1883"
	defaultMQTTTopic          = "kahvi/readings"
	defaultMQTTQoS            = 1
	defaultMQTTConnectTimeout = 10.0
	defaultNotifyTimeout      = 10.0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults. Calibration has
// no defaults: the operator must measure and supply it.
func Default() Config {
	return Config{
		General: General{
			AveragingTime: defaultAveragingTime,
			PollInterval:  defaultPollInterval,
			Driver:        defaultDriver,
		},
		Classifier: Classifier{
			CoffeeComingRatio: defaultCoffeeComingRatio,
			AnomalyRatio:      defaultAnomalyRatio,
		},
		Hardware: Hardware{
			DataPin:      defaultDataPin,
			ClockPin:     defaultClockPin,
			Gain:         defaultGain,
			ReadyTimeout: defaultReadyTimeout,
			GPIODevice:   defaultGPIODevice,
		},
		Database: Database{
			RangeQueryMaxItems: defaultRangeQueryMaxItems,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		MQTT: MQTT{
			Broker:         defaultMQTTBroker,
			Topic:          defaultMQTTTopic,
			QoS:            defaultMQTTQoS,
			Retain:         true,
			ConnectTimeout: defaultMQTTConnectTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
