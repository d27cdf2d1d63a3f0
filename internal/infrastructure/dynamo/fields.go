package dynamo

// Attribute names used in update and filter expressions across repos.
const (
	fieldEnable    = "enable"
	fieldToken     = "token"
	fieldRead      = "read"
	fieldStatus    = "status"
	fieldUpdatedAt = "updated_at"
	fieldImageKey  = "image_key"
)

// Index names.
const (
	indexEmail           = "email-index"
	indexDeviceUUID      = "device_uuid-index"
	indexUserID          = "user_id-index"
	indexUserCreated     = "user_id-created_at-index"
	indexCustomerCreated = "customer_id-created_at-index"
	indexDateScheduled   = "date-scheduled_at-index"
	indexKindName        = "kind-name-index"
)
