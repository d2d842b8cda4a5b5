package handler

import (
	"net/http"

	"go-user-api/internal/middleware"
	"go-user-api/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = user.ID
	actor.Email = user.Email

	return actor
}
