package domain

import "time"

// RegisterTokenRequest opts a browser or app installation into push delivery.
type RegisterTokenRequest struct {
	DeviceUUID *string `json:"device_uuid"`
	Token      string  `json:"token" validate:"required"`
}

type Device struct {
	DeviceID  string    `json:"id" dynamodbav:"device_id"`
	UUID      string    `json:"uuid" dynamodbav:"device_uuid"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Token     *string   `json:"token" dynamodbav:"token"`
	Enable    bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// HasToken reports whether the device can currently receive push messages.
func (d *Device) HasToken() bool {
	return d.Enable && d.Token != nil && *d.Token != ""
}
