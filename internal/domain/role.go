package domain

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)
