package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// Device status values derived from the latest Engine_status field.
const (
	StatusOnline  = "Online"
	StatusOffline = "Offline"
)

// DefaultDisplayParameters is the dashboard's initial gauge selection for
// a newly discovered device.
func DefaultDisplayParameters() []string {
	return []string{
		"Engine_rpm", "fuel_level", "Coolant_temp",
		"oil_Pressure", "engine_h", "def_level",
	}
}

// Device is the latest known state of one datalogger. JSON field names
// match the dashboard's devices API.
type Device struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Serial            string         `json:"serial"`
	Status            string         `json:"status"`
	Lat               float64        `json:"lat"`
	Lon               float64        `json:"lon"`
	Firmware          string         `json:"firmware"`
	Config            string         `json:"config"`
	MaxSpaceMB        float64        `json:"maxSpace"`
	FreeSpaceMB       float64        `json:"freeSpace"`
	Parameters        map[string]any `json:"parameters"`
	DisplayParameters []string       `json:"displayParameters"`
	MachineModel      string         `json:"machine_model"`
	MachineType       string         `json:"machine_type"`
	LastSync          time.Time      `json:"lastSync"`
}

// NewDevice constructs an auto-discovered device from its first payload.
// The surrogate ID is generated here and never changes; attribute values
// come from ApplyPayload, which the caller invokes next.
func NewDevice(serial string) Device {
	return Device{
		ID:                uuid.NewString(),
		Serial:            serial,
		Name:              serial,
		MachineModel:      serial,
		MachineType:       "Unknown",
		Firmware:          "N/A",
		DisplayParameters: DefaultDisplayParameters(),
		Parameters:        map[string]any{},
	}
}

// ApplyPayload overlays an accepted payload onto the device. Fields
// absent from the payload keep their previous value; the parameter map
// is replaced in full. Numeric fields are parsed before any mutation, so
// a malformed location rejects the update without partial changes.
func (d *Device) ApplyPayload(p Payload, now time.Time) error {
	lat, err := p.Float("lat", d.Lat)
	if err != nil {
		return err
	}
	lon, err := p.Float("lon", d.Lon)
	if err != nil {
		return err
	}
	freeSpace, err := p.Float("sd_free_mb", 0)
	if err != nil {
		return err
	}

	d.Name = p.String("machine_model", d.Name)
	d.MachineModel = p.String("machine_model", d.MachineModel)
	d.MachineType = p.String("machine_type", d.MachineType)
	d.Firmware = p.String("ESP_firmware", d.Firmware)
	d.Status = DeriveStatus(p)
	d.Lat = lat
	d.Lon = lon
	d.FreeSpaceMB = freeSpace
	d.Parameters = p.Params()
	d.LastSync = now

	return nil
}

// DeriveStatus maps the payload's engine status onto the device status:
// Online exactly when Engine_status is "ON".
func DeriveStatus(p Payload) string {
	if p.String("Engine_status", "") == "ON" {
		return StatusOnline
	}
	return StatusOffline
}

// Clone returns a deep copy so stores can hand out devices without
// sharing the parameter map.
func (d Device) Clone() Device {
	clone := d
	if d.Parameters != nil {
		clone.Parameters = make(map[string]any, len(d.Parameters))
		for k, v := range d.Parameters {
			clone.Parameters[k] = v
		}
	}
	if d.DisplayParameters != nil {
		clone.DisplayParameters = append([]string(nil), d.DisplayParameters...)
	}
	return clone
}
