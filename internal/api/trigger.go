package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rank_tracker/internal/pipeline"
)

// Runs continue after the client disconnects.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func writeResult(c *gin.Context, res pipeline.Result) {
	if res.Log == nil {
		res.Log = []string{}
	}
	status := http.StatusOK
	if !res.OK {
		status = http.StatusInternalServerError
	}
	c.JSON(status, res)
}

func (h *Handler) collect(c *gin.Context) {
	writeResult(c, h.runner.RunCollection(runContext(c)))
}

func (h *Handler) collectURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	writeResult(c, h.runner.RunCollectionForURL(runContext(c), id))
}

func (h *Handler) backfill(c *gin.Context) {
	var opts pipeline.BackfillOptions
	if err := c.ShouldBindJSON(&opts); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if opts.WeeksBack < 1 || opts.WeeksBack > pipeline.MaxBackfillWeeks {
		fail(c, http.StatusBadRequest, fmt.Sprintf("weeks_back must be between 1 and %d", pipeline.MaxBackfillWeeks))
		return
	}
	writeResult(c, h.runner.RunBackfill(runContext(c), opts))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
