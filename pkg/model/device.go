package model

// Device is a registered handset and the user it was last bound to.
type Device struct {
	ID          string    `json:"device_id"`
	UserID      string    `json:"user_id,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	LastLoginAt Timestamp `json:"last_login_at"`
	CreatedAt   Timestamp `json:"created_at"`
}

// BLEUsage tracks which user a BLE beacon id was last seen with.
type BLEUsage struct {
	ID          string    `json:"ble_id"`
	UserID      string    `json:"user_id,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	LastLoginAt Timestamp `json:"last_login_at"`
	CreatedAt   Timestamp `json:"created_at"`
}

// LoginRecord is one entry of the device login history.
type LoginRecord struct {
	LoggedInAt Timestamp `json:"logged_in_at"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Phone      string    `json:"phone"`
	DeviceID   string    `json:"device_id"`
	Location   string    `json:"location,omitempty"`
	LatLong    string    `json:"lat_long,omitempty"`
	Success    bool      `json:"success"`
}
