package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/authgate/dto"
	"github.com/princinho/authgate/middleware"
	"github.com/princinho/authgate/services"
)

// POST /api/auth/register
func Register(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RegisterDTO
		if !bindJSON(c, &body) {
			return
		}

		token, err := svc.Register(c.Request.Context(), services.RegisterInput{
			Username: body.Username,
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
	}
}

// POST /api/auth/login
func Login(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if !bindJSON(c, &body) {
			return
		}

		token, err := svc.Login(c.Request.Context(), services.LoginInput{
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
	}
}

// GET /api/auth/me
func GetSelf(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.CallerID(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}

		user, err := svc.GetSelf(c.Request.Context(), callerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewUserResponse(user))
	}
}

// GET /api/auth/users
func ListUsers(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.CallerID(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}

		users, err := svc.ListUsers(c.Request.Context(), callerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewUserListResponse(users))
	}
}

// PUT /api/auth/users/:id/admin
func ToggleAdmin(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID, ok := middleware.CallerID(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}

		user, err := svc.ToggleAdmin(c.Request.Context(), callerID, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewUserResponse(user))
	}
}

// POST /api/auth/reset-password
func ResetPassword(svc *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if !bindJSON(c, &body) {
			return
		}

		err := svc.ResetPassword(c.Request.Context(), services.ResetPasswordInput{
			Email:       body.Email,
			OldPassword: body.OldPassword,
			NewPassword: body.NewPassword,
		})
		if errors.Is(err, services.ErrNotFound) {
			// this route only ever answers 400
			_ = c.Error(err)
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Msg: services.ErrNotFound.Error()})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponse{Msg: "password updated successfully"})
	}
}
