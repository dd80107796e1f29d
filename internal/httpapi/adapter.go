package httpapi

import (
	"net/http"

	"github.com/beaconmq/broker/pkg/servers/web"
	"github.com/gin-gonic/gin"
)

// GinAdapter bridges gin's *gin.Context into the raw *http.Request
// the Controller's handlers expect, copying gin's path parameters
// onto the request the way the stdlib router would have set them.
type GinAdapter struct {
	ctl *Controller
}

// NewGinAdapter wraps ctl so it satisfies web.Service.
func NewGinAdapter(ctl *Controller) *GinAdapter {
	return &GinAdapter{ctl: ctl}
}

func withPathParams(c *gin.Context) *http.Request {
	r := c.Request
	for _, p := range c.Params {
		r.SetPathValue(p.Key, p.Value)
	}
	return r
}

func respond[T any](c *gin.Context, resp web.ApiResponse[T], apiErr *web.ApiError) {
	if apiErr != nil {
		c.JSON(apiErr.Code, apiErr)
		return
	}
	if resp.Code == http.StatusNoContent {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(resp.Code, resp.Body)
}

func (a *GinAdapter) PostMessages(c *gin.Context) {
	resp, apiErr := a.ctl.PostMessages(withPathParams(c))
	respond(c, resp, apiErr)
}

func (a *GinAdapter) QueueStats(c *gin.Context) {
	resp, apiErr := a.ctl.QueueStats(withPathParams(c))
	respond(c, resp, apiErr)
}

func (a *GinAdapter) CreateClaim(c *gin.Context) {
	resp, apiErr := a.ctl.CreateClaim(withPathParams(c))
	respond(c, resp, apiErr)
}

func (a *GinAdapter) GetClaim(c *gin.Context) {
	resp, apiErr := a.ctl.GetClaim(withPathParams(c))
	respond(c, resp, apiErr)
}

func (a *GinAdapter) UpdateClaim(c *gin.Context) {
	resp, apiErr := a.ctl.UpdateClaim(withPathParams(c))
	respond(c, resp, apiErr)
}

func (a *GinAdapter) DeleteClaim(c *gin.Context) {
	resp, apiErr := a.ctl.DeleteClaim(withPathParams(c))
	respond(c, resp, apiErr)
}
