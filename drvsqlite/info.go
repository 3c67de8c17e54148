package drvsqlite

// Info describes the driver this build uses.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	Package    string `json:"package"`
}

// GetInfo returns the driver this build uses.
func GetInfo() Info {
	return Info{
		DriverName: DriverName,
		DriverType: DriverType,
		Package:    driverPackage,
	}
}
