package service

import (
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/general/redis"
	"courier-dispatch/internal/ports"
)

// adminService backs the back-office HTTP API: login, push registration,
// notification fan-out, the dashboard overview, and runtime system flags.
type adminService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	users  ports.UserRepository
	tokens ports.PushTokenRepository
	notes  ports.NotificationRepository
	orders ports.OrderRepository
	cache  *redis.Client
	pub    ports.MessagePublisher
	push   ports.PushProvider
	auth   *jwt.Manager
}

// NewAdminService constructs the admin service.
func NewAdminService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserRepository,
	tokens ports.PushTokenRepository,
	notes ports.NotificationRepository,
	orders ports.OrderRepository,
	cache *redis.Client,
	pub ports.MessagePublisher,
	push ports.PushProvider,
	auth *jwt.Manager,
) ports.AdminService {
	return &adminService{
		logger: log,
		uow:    uow,
		users:  users,
		tokens: tokens,
		notes:  notes,
		orders: orders,
		cache:  cache,
		pub:    pub,
		push:   push,
		auth:   auth,
	}
}
