package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
	"github.com/shulebot/shulebot/core/bot"
)

// schoolIDHeader carries the tenant; it is forwarded opaquely to the
// administrative API along with the bearer token.
const schoolIDHeader = "X-School-ID"

type chatAPI struct {
	svc      *bot.Service
	sessions bot.SessionRepository
	secret   []byte
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, opts *Options) {
	api := chatAPI{
		svc:      opts.BotSvc,
		sessions: opts.Sessions,
		secret:   opts.SecretKey,
		validate: core.Validate,
	}
	g.POST("/chat", api.chat)
}

type ChatRequest struct {
	ConversationID string            `json:"conversation_id"`
	Text           string            `json:"text"`
	Intent         string            `json:"intent" validate:"required"`
	Entities       map[string]string `json:"entities"`
	Slots          map[string]string `json:"slots"`
}

func (r ChatRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type ChatResponse struct {
	ConversationID string            `json:"conversation_id"`
	Replies        []string          `json:"replies"`
	Slots          map[string]string `json:"slots"`
}

// chat runs one conversation turn: load the conversation's slot
// snapshot, hand it to the interpreter together with the classified
// utterance, persist the returned delta and echo the replies.
func (api *chatAPI) chat(ctx echo.Context) error {
	var data ChatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token := bearerToken(ctx)
	sess := admin.Session{
		Token:    token,
		SchoolID: ctx.Request().Header.Get(schoolIDHeader),
	}
	if claims := parseClaims(token, api.secret); claims != nil {
		sess.UserID = claims.Subject
	}

	rctx := ctx.Request().Context()

	convID := data.ConversationID
	if convID == "" {
		convID = uuid.New().String()
	}
	conv, err := api.sessions.GetConversation(rctx, convID)
	if err != nil {
		if errors.Cause(err) != bot.ErrConversationNotFound {
			return errors.Wrap(err, "loading conversation")
		}
		conv = bot.Conversation{ID: convID, Slots: make(bot.Slots)}
	}

	// slots supplied with the request override the stored snapshot
	slots := conv.Slots.Clone()
	for name, value := range data.Slots {
		slots[name] = value
	}

	res, err := api.svc.HandleTurn(rctx, bot.Utterance{
		Text:     data.Text,
		Intent:   data.Intent,
		Entities: data.Entities,
		Session:  sess,
	}, slots)
	if err != nil {
		return errors.Wrap(err, "handling turn")
	}

	conv.Slots = res.Delta.Apply(slots)
	conv.UserID = sess.UserID
	if _, err = api.sessions.SaveConversation(rctx, conv); err != nil {
		return errors.Wrap(err, "saving conversation")
	}

	return ctx.JSON(http.StatusOK, ChatResponse{
		ConversationID: convID,
		Replies:        res.Replies,
		Slots:          conv.Slots,
	})
}
