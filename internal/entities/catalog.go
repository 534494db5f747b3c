package entities

// deviceInfo is the Home Assistant discovery "device" block shared by
// every entity belonging to one JuiceBox.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func newDeviceInfo(serial, version string) deviceInfo {
	return deviceInfo{
		Identifiers:  []string{serial},
		Name:         "JuiceBox " + serial,
		Manufacturer: "EnelX",
		Model:        "JuiceBox",
		SWVersion:    version,
		ViaDevice:    "juicebridge",
	}
}

// sensorDef describes one read-only measurement entity.
type sensorDef struct {
	objectID          string
	name              string
	unit              string
	deviceClass       string
	stateClass        string
	icon              string
	entityCategory    string
	enabledByDefault  bool
	expireAfterSecond int
}

// sensorCatalog enumerates every read-only sensor this adapter publishes,
// grounded on juicebox_mqtthandler.py's _init_device_* methods.
var sensorCatalog = []sensorDef{
	{objectID: "status", name: "Status", icon: "mdi:ev-station", enabledByDefault: true},
	{objectID: "current", name: "Current", unit: "A", deviceClass: "current", stateClass: "measurement", enabledByDefault: true},
	{objectID: "frequency", name: "Frequency", unit: "Hz", deviceClass: "frequency", stateClass: "measurement", enabledByDefault: true},
	{objectID: "energy_lifetime", name: "Energy (Lifetime)", unit: "Wh", deviceClass: "energy", stateClass: "total_increasing", enabledByDefault: true},
	{objectID: "energy_session", name: "Energy (Session)", unit: "Wh", deviceClass: "energy", stateClass: "total_increasing", enabledByDefault: true},
	{objectID: "temperature", name: "Temperature", unit: "°F", deviceClass: "temperature", stateClass: "measurement", enabledByDefault: true},
	{objectID: "voltage", name: "Voltage", unit: "V", deviceClass: "voltage", stateClass: "measurement", enabledByDefault: true},
	{objectID: "power", name: "Power", unit: "W", deviceClass: "power", stateClass: "measurement", enabledByDefault: true},
	{
		objectID: "current_rating", name: "Current Rating", unit: "A", stateClass: "measurement",
		icon: "mdi:current-ac", entityCategory: "diagnostic", enabledByDefault: true,
	},
	{
		objectID: "current_max_offline", name: "Max Current (Offline, Reported)", unit: "A", stateClass: "measurement",
		icon: "mdi:current-ac", entityCategory: "diagnostic", enabledByDefault: true,
	},
	{
		objectID: "debug_message", name: "Last Debug Message", icon: "mdi:bug",
		entityCategory: "diagnostic", expireAfterSecond: 60, enabledByDefault: false,
	},
	{
		objectID: "last_device_frame", name: "Last Device Frame", icon: "mdi:chip",
		entityCategory: "diagnostic", enabledByDefault: false,
	},
	{
		objectID: "last_cloud_frame", name: "Last Cloud Frame", icon: "mdi:cloud",
		entityCategory: "diagnostic", enabledByDefault: false,
	},
}

// numberDef describes one mutable numeric setpoint.
type numberDef struct {
	objectID string
	name     string
	unit     string
	min, max float64
	icon     string
}

// numberCatalog enumerates the amperage setpoints the adapter exposes
// for write.
var numberCatalog = []numberDef{
	{objectID: "current_max_online_set", name: "Max Current (Online)", unit: "A", min: 0, max: 80, icon: "mdi:current-ac"},
	{objectID: "current_max_offline_set", name: "Max Current (Offline)", unit: "A", min: 0, max: 80, icon: "mdi:current-ac"},
}

// switchDef describes one mutable boolean.
type switchDef struct {
	objectID string
	name     string
	icon     string
}

var switchCatalog = []switchDef{
	{objectID: "act_as_server", name: "Act As Server", icon: "mdi:server"},
}

// textDef describes one mutable free-text input, forwarded verbatim to
// the relay for diagnostic injection.
type textDef struct {
	objectID string
	name     string
	icon     string
}

var textCatalog = []textDef{
	{objectID: "inject_command", name: "Inject Raw Command", icon: "mdi:console"},
}
