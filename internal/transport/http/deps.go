package http

import (
	"github.com/barbershop-booking/internal/infrastructure/dynamo"
	jwtinfra "github.com/barbershop-booking/internal/infrastructure/jwt"
	"github.com/barbershop-booking/internal/infrastructure/llm"
	"github.com/barbershop-booking/internal/infrastructure/redisbus"
	s3infra "github.com/barbershop-booking/internal/infrastructure/s3"
	"github.com/barbershop-booking/internal/infrastructure/sns"
	"github.com/barbershop-booking/internal/queue"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	DeviceRepo       *dynamo.DeviceRepo
	NotificationRepo *dynamo.NotificationRepo
	AppointmentRepo  *dynamo.AppointmentRepo
	CatalogRepo      *dynamo.CatalogRepo
	Images           *s3infra.Store
	Publisher        *sns.Publisher
	JWTProvider      *jwtinfra.Provider
	LLM              *llm.Client

	// Hub is the in-process queue position source; main runs its refresh loop.
	Hub *queue.Hub
	// Bus fans queue changes out to other processes. Nil when Redis is not configured.
	Bus *redisbus.Bus
}
