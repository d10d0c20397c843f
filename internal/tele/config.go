package tele

type Config struct { //nolint:maligned
	Enabled           bool   `hcl:"enable"`
	ClientID          string `hcl:"client_id"`
	MqttBroker        string `hcl:"mqtt_broker"`
	MqttPassword      string `hcl:"mqtt_password"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	PersistPath       string `hcl:"persist_path"`
	ReportSec         int    `hcl:"report_sec"`
	LogDebug          bool   `hcl:"log_debug"`
	MqttLogDebug      bool   `hcl:"mqtt_log_debug"`
}

func TopicCommand(client string) string                 { return client + "/r/c" }
func TopicResponse(client string, suffix string) string { return client + "/" + suffix }
func TopicState(client string) string                   { return client + "/w/1s" }
func TopicReport(client string) string                  { return client + "/w/1t" }
