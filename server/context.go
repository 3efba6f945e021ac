package server

import (
	"context"

	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
)

type (
	ctxUser struct{}
)

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxUser{}, user)
}

func getUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(ctxUser{}).(*models.User)
	return user
}
