// Package router wires handlers onto the Echo instance. Routes are
// grouped by authentication needs: the health check is open, /v1/auth
// issues tokens, and everything else lives behind the JWT and role
// middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tutorhub/tutorhub/internal/handler"
	"github.com/tutorhub/tutorhub/internal/middleware"
	"github.com/tutorhub/tutorhub/internal/model"
)

// Handlers collects every handler the API mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Profile    *handler.ProfileHandler
	Ticket     *handler.TicketHandler
	Conv       *handler.ConversationHandler
	Meeting    *handler.MeetingHandler
	Room       *handler.StudyRoomHandler
	Connection *handler.ConnectionHandler
	Storage    *handler.StorageHandler
	Realtime   *handler.RealtimeHandler
	JWTSecret  string
	RateLimit  echo.MiddlewareFunc // applied to the whole protected group
	Cache      echo.MiddlewareFunc // applied only to shareable lookups
}

// Register mounts all routes.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)

	// Token issuance; no session required.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Everything else requires a valid access token with a known role.
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(h.JWTSecret))
	v1.Use(middleware.RequireRole(model.RoleStudent, model.RoleTutor))
	if h.RateLimit != nil {
		v1.Use(h.RateLimit)
	}

	v1.GET("/me", h.Auth.Me)
	// Authenticated logout; an empty body revokes all of the caller's
	// sessions, which the open /v1/auth/logout route cannot do.
	v1.DELETE("/sessions", h.Auth.Logout)

	// Profiles and user discovery. Search and subject lookups carry no
	// caller-specific data, so they alone sit behind the response cache.
	v1.GET("/profile", h.Profile.Get)
	v1.PUT("/profile", h.Profile.Update)
	if h.Cache != nil {
		v1.GET("/users/search", h.Profile.Search, h.Cache)
		v1.GET("/tutors/:id/subjects", h.Profile.TutorSubjects, h.Cache)
	} else {
		v1.GET("/users/search", h.Profile.Search)
		v1.GET("/tutors/:id/subjects", h.Profile.TutorSubjects)
	}

	// Help tickets. Only students open and close them.
	studentOnly := middleware.RequireRole(model.RoleStudent)
	v1.POST("/tickets", h.Ticket.Create, studentOnly)
	v1.GET("/tickets", h.Ticket.List)
	v1.POST("/tickets/:id/close", h.Ticket.Close, studentOnly)
	v1.POST("/tickets/:id/responses", h.Ticket.Respond)

	// 1:1 messaging.
	v1.POST("/conversations", h.Conv.Create)
	v1.GET("/conversations", h.Conv.List)
	v1.GET("/conversations/:id/messages", h.Conv.Messages)
	v1.POST("/conversations/:id/messages", h.Conv.Send)

	// Meetings. Students request; the store decides who may transition.
	v1.POST("/meetings", h.Meeting.Create, studentOnly)
	v1.GET("/meetings", h.Meeting.List)
	v1.PATCH("/meetings/:id/status", h.Meeting.UpdateStatus)

	// Study rooms.
	v1.POST("/study-rooms", h.Room.Create)
	v1.GET("/study-rooms", h.Room.List)
	v1.POST("/study-rooms/:id/join", h.Room.Join)
	v1.DELETE("/study-rooms/:id/leave", h.Room.Leave)
	v1.GET("/study-rooms/:id/messages", h.Room.Messages)
	v1.POST("/study-rooms/:id/messages", h.Room.Send)
	v1.POST("/study-rooms/:id/invitations", h.Room.Invite)
	v1.GET("/invitations", h.Room.Invitations)
	v1.POST("/invitations/:id/accept", h.Room.AcceptInvitation)

	// Student–tutor connections.
	tutorOnly := middleware.RequireRole(model.RoleTutor)
	v1.POST("/connections/invitations", h.Connection.Invite, studentOnly)
	v1.GET("/connections/invitations", h.Connection.Invitations, tutorOnly)
	v1.POST("/connections/invitations/:id/accept", h.Connection.Accept, tutorOnly)
	v1.POST("/connections/invitations/:id/reject", h.Connection.Reject, tutorOnly)
	v1.GET("/connections", h.Connection.List)

	// File storage.
	v1.POST("/files/upload-url", h.Storage.UploadURL)
	v1.POST("/files/download-url", h.Storage.DownloadURL)
	v1.DELETE("/files", h.Storage.Delete)

	// Live event streams.
	v1.GET("/subscribe/conversations/:id", h.Realtime.Conversation)
	v1.GET("/subscribe/study-rooms/:id", h.Realtime.Room)
	v1.GET("/subscribe/meetings", h.Realtime.Meetings)
}
