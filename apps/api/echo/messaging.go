package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/messaging"
)

type messagingApi struct {
	svc      *messaging.Service
	validate *validator.Validate
}

func registerMessagingAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := messagingApi{svc: deps.MessagingSvc, validate: deps.Validate}

	cg := g.Group("/conversations", authed)
	cg.GET("", api.queryConversations)
	cg.POST("", api.createConversation)
	cg.GET("/:id", api.retrieveConversation)
	cg.POST("/:id/add_participant", api.addParticipant)
	cg.POST("/:id/remove_participant", api.removeParticipant)
	cg.GET("/:id/messages", api.conversationMessages)

	mg := g.Group("/messages", authed)
	mg.GET("", api.queryMessages)
	mg.POST("", api.sendMessage)
	mg.GET("/:id", api.retrieveMessage)
	mg.PUT("/:id", api.editMessage)
	mg.PATCH("/:id", api.editMessage)
	mg.DELETE("/:id", api.destroyMessage)
	mg.POST("/:id/mark_read", api.markRead)
}

type ParticipantRequest struct {
	UserID string `json:"user_id"`
}

// Conversations

func (api *messagingApi) createConversation(ctx echo.Context) error {
	var data messaging.NewConversation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewConversation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	conv, err := api.svc.CreateConversation(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating conversation")
	}
	return ctx.JSON(http.StatusCreated, conv)
}

func (api *messagingApi) queryConversations(ctx echo.Context) error {
	convs, err := api.svc.ListConversations(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	if convs == nil {
		convs = []messaging.ConversationDetail{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *messagingApi) retrieveConversation(ctx echo.Context) error {
	conv, err := api.svc.GetConversation(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return ctx.JSON(http.StatusOK, conv)
}

func (api *messagingApi) addParticipant(ctx echo.Context) error {
	var data ParticipantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ParticipantRequest")
	}
	p, created, err := api.svc.AddParticipant(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data.UserID)
	if err != nil {
		return errors.Wrap(err, "adding participant")
	}
	if created {
		return ctx.JSON(http.StatusCreated, p)
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *messagingApi) removeParticipant(ctx echo.Context) error {
	var data ParticipantRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ParticipantRequest")
	}
	if err := api.svc.RemoveParticipant(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data.UserID); err != nil {
		return errors.Wrap(err, "removing participant")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messagingApi) conversationMessages(ctx echo.Context) error {
	return api.listMessages(ctx, ctx.Param("id"))
}

// Messages

func (api *messagingApi) queryMessages(ctx echo.Context) error {
	return api.listMessages(ctx, ctx.QueryParam("conversation"))
}

func (api *messagingApi) listMessages(ctx echo.Context, conversationID string) error {
	msgs, err := api.svc.ListMessages(ctx.Request().Context(), actor(ctx), conversationID)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messagingApi) sendMessage(ctx echo.Context) error {
	var data messaging.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	msg, err := api.svc.SendMessage(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messagingApi) retrieveMessage(ctx echo.Context) error {
	msg, err := api.svc.GetMessage(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messagingApi) editMessage(ctx echo.Context) error {
	var data messaging.UpdateMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	msg, err := api.svc.EditMessage(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messagingApi) destroyMessage(ctx echo.Context) error {
	if err := api.svc.DeleteMessage(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messagingApi) markRead(ctx echo.Context) error {
	read, created, err := api.svc.MarkRead(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	if created {
		return ctx.JSON(http.StatusCreated, read)
	}
	return ctx.JSON(http.StatusOK, read)
}
