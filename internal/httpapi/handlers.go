// Package httpapi exposes the claim subsystem over the broker's REST
// transport: posting messages, inspecting queue stats, and the four
// claim operations.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	v1 "github.com/beaconmq/broker/api/v1"
	"github.com/beaconmq/broker/internal/claim"
	"github.com/beaconmq/broker/internal/message"
	"github.com/beaconmq/broker/internal/store"
	"github.com/beaconmq/broker/pkg/servers/web"
	"k8s.io/klog/v2"
)

// Controller adapts the claim and message controllers to the
// web.Handler[T] shape: a function of a raw *http.Request returning a
// typed response or an *web.ApiError.
type Controller struct {
	claims   *claim.Controller
	store    store.Store
	mutator  *message.Mutator
	maxBatch int
}

// NewController wires a transport controller around the claim
// subsystem's core controllers.
func NewController(claims *claim.Controller, st store.Store, mutator *message.Mutator) *Controller {
	return &Controller{claims: claims, store: st, mutator: mutator, maxBatch: claim.MaxBatch}
}

func validationError(reason string) *web.ApiError {
	return &web.ApiError{Code: http.StatusBadRequest, Message: reason}
}

func toApiError(err error) *web.ApiError {
	switch {
	case claim.IsClaimDoesNotExist(err):
		return &web.ApiError{Code: http.StatusNotFound, Message: err.Error()}
	case claim.IsQueueDoesNotExist(err):
		return &web.ApiError{Code: http.StatusNotFound, Message: err.Error()}
	case claim.IsConflict(err):
		return &web.ApiError{Code: http.StatusConflict, Message: err.Error()}
	case claim.IsValidation(err):
		return &web.ApiError{Code: http.StatusBadRequest, Message: err.Error()}
	default:
		return &web.ApiError{Code: http.StatusServiceUnavailable, Message: err.Error()}
	}
}

func toWireMessage(m store.Message) v1.Message {
	return v1.Message{
		ID:           m.ID,
		Body:         m.Body,
		TTL:          m.TTL,
		Expires:      m.Expires,
		ClaimID:      m.ClaimID,
		ClaimExpires: m.ClaimExpires,
	}
}

// PostMessages posts a batch of messages to a queue.
func (c *Controller) PostMessages(r *http.Request) (web.ApiResponse[v1.PostMessagesResponse], *web.ApiError) {
	project, queue := r.PathValue("project"), r.PathValue("queue")
	var req v1.PostMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return web.ApiResponse[v1.PostMessagesResponse]{}, validationError("malformed request body: " + err.Error())
	}
	if len(req.Messages) == 0 {
		return web.ApiResponse[v1.PostMessagesResponse]{}, validationError("messages must not be empty")
	}

	ids := make([]string, 0, len(req.Messages))
	ctx := r.Context()
	log := klog.FromContext(ctx).WithValues("project", project, "queue", queue)

	for _, m := range req.Messages {
		ttl := m.TTL
		if ttl <= 0 {
			ttl = claim.DefaultTTL
		}
		var id string
		err := store.WithRetry(func() error {
			return c.store.Batch(ctx, func(w store.Writer) error {
				var postErr error
				id, postErr = c.mutator.Post(ctx, w, project, queue, m.Body, ttl)
				return postErr
			})
		})
		if err != nil {
			log.Error(err, "failed to post message")
			return web.ApiResponse[v1.PostMessagesResponse]{}, toApiError(claim.ErrConnection(err))
		}
		ids = append(ids, id)
	}

	return web.ApiResponse[v1.PostMessagesResponse]{
		Code: http.StatusCreated,
		Body: v1.PostMessagesResponse{IDs: ids},
	}, nil
}

// QueueStats reports a queue's claimed/free/total message counts.
func (c *Controller) QueueStats(r *http.Request) (web.ApiResponse[v1.QueueStats], *web.ApiError) {
	project, queue := r.PathValue("project"), r.PathValue("queue")
	stats, err := c.claims.Stats(r.Context(), project, queue)
	if err != nil {
		return web.ApiResponse[v1.QueueStats]{}, toApiError(claim.ErrConnection(err))
	}
	return web.ApiResponse[v1.QueueStats]{Code: http.StatusOK, Body: stats}, nil
}

// CreateClaim leases up to limit active messages from a queue.
func (c *Controller) CreateClaim(r *http.Request) (web.ApiResponse[v1.CreateClaimResponse], *web.ApiError) {
	project, queue := r.PathValue("project"), r.PathValue("queue")
	var req v1.CreateClaimRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return web.ApiResponse[v1.CreateClaimResponse]{}, validationError("malformed request body: " + err.Error())
		}
	}

	ttl, grace, limit, apiErr := normalizeClaimParams(req.TTL, req.Grace, req.Limit, c.maxBatch)
	if apiErr != nil {
		return web.ApiResponse[v1.CreateClaimResponse]{}, apiErr
	}

	claimID, msgs, err := c.claims.Create(r.Context(), project, queue, ttl, grace, limit)
	if err != nil {
		return web.ApiResponse[v1.CreateClaimResponse]{}, toApiError(err)
	}

	wire := make([]v1.Message, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, toWireMessage(m))
	}
	return web.ApiResponse[v1.CreateClaimResponse]{
		Code: http.StatusCreated,
		Body: v1.CreateClaimResponse{ClaimID: claimID, Messages: wire},
	}, nil
}

// GetClaim inspects a claim's metadata and still-present messages.
func (c *Controller) GetClaim(r *http.Request) (web.ApiResponse[v1.GetClaimResponse], *web.ApiError) {
	project, queue, claimID := r.PathValue("project"), r.PathValue("queue"), r.PathValue("claimID")
	cl, msgs, err := c.claims.Get(r.Context(), project, queue, claimID)
	if err != nil {
		return web.ApiResponse[v1.GetClaimResponse]{}, toApiError(err)
	}

	wire := make([]v1.Message, 0, len(msgs))
	for _, m := range msgs {
		wire = append(wire, toWireMessage(m))
	}
	return web.ApiResponse[v1.GetClaimResponse]{
		Code: http.StatusOK,
		Body: v1.GetClaimResponse{
			Claim:    v1.ClaimMeta{ID: cl.ID, TTL: cl.TTL, Age: claim.Age(c.claims.Now(), cl)},
			Messages: wire,
		},
	}, nil
}

// UpdateClaim renews a claim's lease.
func (c *Controller) UpdateClaim(r *http.Request) (web.ApiResponse[struct{}], *web.ApiError) {
	project, queue, claimID := r.PathValue("project"), r.PathValue("queue"), r.PathValue("claimID")
	var req v1.UpdateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return web.ApiResponse[struct{}]{}, validationError("malformed request body: " + err.Error())
	}

	ttl, grace, _, apiErr := normalizeClaimParams(req.TTL, req.Grace, nil, c.maxBatch)
	if apiErr != nil {
		return web.ApiResponse[struct{}]{}, apiErr
	}

	if err := c.claims.Update(r.Context(), project, queue, claimID, ttl, grace); err != nil {
		return web.ApiResponse[struct{}]{}, toApiError(err)
	}
	return web.ApiResponse[struct{}]{Code: http.StatusNoContent}, nil
}

// DeleteClaim releases a claim. Idempotent.
func (c *Controller) DeleteClaim(r *http.Request) (web.ApiResponse[struct{}], *web.ApiError) {
	project, queue, claimID := r.PathValue("project"), r.PathValue("queue"), r.PathValue("claimID")
	if err := c.claims.Delete(r.Context(), project, queue, claimID); err != nil {
		return web.ApiResponse[struct{}]{}, toApiError(err)
	}
	return web.ApiResponse[struct{}]{Code: http.StatusNoContent}, nil
}

// normalizeClaimParams applies defaults and enforces the boundary
// validation the claim controller itself deliberately omits. limit is
// a pointer so an omitted field (default to maxBatch) can be told
// apart from an explicit 0, which spec requires to be rejected outright.
func normalizeClaimParams(ttl, grace int64, limit *int, maxBatch int) (int64, int64, int, *web.ApiError) {
	if ttl == 0 {
		ttl = claim.DefaultTTL
	}
	if grace == 0 {
		grace = claim.DefaultGrace
	}
	if ttl < 0 {
		return 0, 0, 0, validationError("ttl must be non-negative")
	}
	if grace < 0 {
		return 0, 0, 0, validationError("grace must be non-negative")
	}
	if limit == nil {
		return ttl, grace, maxBatch, nil
	}
	if *limit <= 0 {
		return 0, 0, 0, validationError("limit must be at least 1")
	}
	if *limit > maxBatch {
		return 0, 0, 0, validationError("limit exceeds maximum batch size of " + strconv.Itoa(maxBatch))
	}
	return ttl, grace, *limit, nil
}
