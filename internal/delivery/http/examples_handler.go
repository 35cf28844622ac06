package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Example is a named Facto program the editor can load.
type Example struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// ExamplesHandler serves the example programs for the editor's loader.
type ExamplesHandler struct{}

// NewExamplesHandler creates a new ExamplesHandler.
func NewExamplesHandler() *ExamplesHandler {
	return &ExamplesHandler{}
}

var examples = []Example{
	{
		Name:        "counter",
		Description: "A simple clock counting up once per tick",
		Source:      "mem counter: int\ncounter = counter + 1\nout counter\n",
	},
	{
		Name:        "blinker",
		Description: "A signal that toggles on and off",
		Source:      "mem state: int\nstate = 1 - state\nout state * 255\n",
	},
	{
		Name:        "threshold-alarm",
		Description: "Raise an alarm signal once an input crosses a threshold",
		Source:      "in level: int\nout alarm: level > 100\n",
	},
}

// List handles GET /api/v1/examples
func (h *ExamplesHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"examples": examples,
	})
}
