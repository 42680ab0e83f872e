package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/utils"
)

// bindJSON decodes the request body into req and runs struct validation.
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errors.Wrap(errors.ErrInvalidArgument, err, "invalid JSON body")
	}
	return utils.ValidateStruct(req)
}

// environmentQuery reads the optional server_type query parameter. A missing
// or empty parameter selects every environment (nil); any other value is
// mapped by models.ParseEnvironment.
func environmentQuery(c *gin.Context) *models.Environment {
	return environmentField(c.Query("server_type"))
}

// environmentField maps an optional server_type body field. Empty selects
// every environment; "production" selects production and anything else the
// sandbox.
func environmentField(raw string) *models.Environment {
	if raw == "" {
		return nil
	}
	env := models.ParseEnvironment(raw)
	return &env
}
