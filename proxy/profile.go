package proxy

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/profile"
)

const (
	routeProfile          = "profile"
	profileAllowedMethods = "GET, PUT, OPTIONS"
)

const profileUpdateSchemaJSON = `{
  "type": "object",
  "properties": {
    "username": {"type": "string"},
    "website": {"type": "string"},
    "avatar_url": {"type": "string"}
  }
}`

var profileUpdateSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(profileUpdateSchemaJSON))
	if err != nil {
		panic("invalid profile update schema: " + err.Error())
	}
	return s
}()

// profileUpdate is the editable part of a profile. The id always comes from
// the credential, never from the body.
type profileUpdate struct {
	Username  string `json:"username"`
	Website   string `json:"website"`
	AvatarURL string `json:"avatar_url"`
}

// handleProfile reads or upserts the caller's own profile.
func (p *Proxy) handleProfile(c *fiber.Ctx) error {
	setCORSHeaders(c, profileAllowedMethods)

	switch c.Method() {
	case fiber.MethodOptions:
		return preflight(c)
	case fiber.MethodGet, fiber.MethodPut:
	default:
		return methodNotAllowed(c, profileAllowedMethods)
	}

	log := p.requestLogger(c)

	principal, err := p.authenticate(c)
	if err != nil {
		return p.fail(c, routeProfile, log, err)
	}
	log = log.With(zap.String("user_id", principal.ID))

	if c.Method() == fiber.MethodGet {
		prof, err := p.profiles.Get(c.UserContext(), principal.ID)
		if err != nil {
			var notFound profile.ErrNotFound
			if errors.As(err, &notFound) {
				p.metrics.Request(routeProfile, "not_found")
				return c.Status(fiber.StatusNotFound).JSON(errorBody("profile not found"))
			}
			return p.fail(c, routeProfile, log, err)
		}

		p.metrics.Request(routeProfile, "completed")
		return c.JSON(prof)
	}

	update, err := decodeProfileUpdate(c.Body())
	if err != nil {
		return p.fail(c, routeProfile, log, err)
	}

	prof := &profile.Profile{
		ID:        principal.ID,
		Username:  update.Username,
		Website:   update.Website,
		AvatarURL: update.AvatarURL,
	}
	if err := p.profiles.Upsert(c.UserContext(), prof); err != nil {
		return p.fail(c, routeProfile, log, err)
	}

	log.Info("profile updated")
	p.metrics.Request(routeProfile, "completed")
	return c.JSON(prof)
}

// decodeProfileUpdate accepts only a JSON object with string fields.
func decodeProfileUpdate(body []byte) (*profileUpdate, error) {
	if len(body) == 0 || !json.Valid(body) {
		return nil, llm.MalformedInput("profile body must be a JSON object", nil)
	}

	result, err := profileUpdateSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, llm.MalformedInput("profile body could not be validated", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, llm.MalformedInput("invalid profile body: "+strings.Join(details, "; "), nil)
	}

	var update profileUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, llm.MalformedInput("profile body could not be decoded", err)
	}
	return &update, nil
}
