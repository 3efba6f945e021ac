package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trilliondigital/Dirt-v1.0-sub007/content"
	"github.com/trilliondigital/Dirt-v1.0-sub007/models"
	"github.com/trilliondigital/Dirt-v1.0-sub007/moderation"
)

type createAccountRequest struct {
	Handle string `json:"handle"`
	Email  string `json:"email"`
}

type createAccountResponse struct {
	UserID    uint   `json:"userId"`
	Handle    string `json:"handle"`
	AccessJwt string `json:"accessJwt"`
}

func (s *Server) handleCreateAccount(c echo.Context) error {
	ctx := c.Request().Context()

	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	user, err := s.cstore.CreateUser(ctx, req.Handle, req.Email)
	if err != nil {
		return err
	}

	tok, err := s.createAuthTokenForUser(user)
	if err != nil {
		return err
	}

	return c.JSON(200, createAccountResponse{UserID: user.ID, Handle: user.Handle, AccessJwt: tok})
}

type createSessionRequest struct {
	Handle string `json:"handle"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	user, err := s.cstore.GetUserByHandle(ctx, req.Handle)
	if err != nil {
		return err
	}

	tok, err := s.createAuthTokenForUser(user)
	if err != nil {
		return err
	}

	return c.JSON(200, createAccountResponse{UserID: user.ID, Handle: user.Handle, AccessJwt: tok})
}

type submitContentRequest struct {
	Type     string   `json:"type"`
	Body     string   `json:"body"`
	Tags     []string `json:"tags"`
	Rating   int      `json:"rating,omitempty"`
	ParentID uint     `json:"parentId,omitempty"`
}

type submitContentResponse struct {
	ID        uint      `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleSubmitContent(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req submitContentRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	ctype, err := models.ParseContentType(req.Type)
	if err != nil {
		return err
	}

	res, err := s.cstore.SubmitContent(ctx, user.ID, content.SubmitParams{
		Type:     ctype,
		Body:     req.Body,
		Tags:     req.Tags,
		Rating:   req.Rating,
		ParentID: req.ParentID,
	})
	if err != nil {
		return err
	}

	return c.JSON(200, submitContentResponse{ID: res.Ref.ID, Type: string(res.Ref.Type), CreatedAt: res.CreatedAt})
}

func refFromRequest(id uint, ctype string) (models.ContentRef, error) {
	t, err := models.ParseContentType(ctype)
	if err != nil {
		return models.ContentRef{}, err
	}
	if id == 0 {
		return models.ContentRef{}, fmt.Errorf("%w: missing content id", models.ErrValidation)
	}
	return models.ContentRef{ID: id, Type: t}, nil
}

func (s *Server) handleListContent(c echo.Context) error {
	ctx := c.Request().Context()

	ctype, err := models.ParseContentType(c.QueryParam("type"))
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	units, err := s.cstore.ListByScore(ctx, ctype, limit, offset)
	if err != nil {
		return err
	}

	type item struct {
		ID        uint   `json:"id"`
		AuthorID  uint   `json:"authorId"`
		Body      string `json:"body"`
		NetScore  int64  `json:"netScore"`
		Status    string `json:"status"`
		CreatedAt string `json:"createdAt"`
	}
	out := make([]item, 0, len(units))
	for _, u := range units {
		out = append(out, item{
			ID:        u.ID,
			AuthorID:  u.AuthorID,
			Body:      u.Body,
			NetScore:  u.NetScore(),
			Status:    string(u.ModerationStatus),
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(200, out)
}

type contentRefRequest struct {
	ContentID   uint   `json:"contentId"`
	ContentType string `json:"contentType"`
}

func (s *Server) handleDeleteContent(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req contentRefRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}
	ref, err := refFromRequest(req.ContentID, req.ContentType)
	if err != nil {
		return err
	}

	if err := s.cstore.DeleteContent(ctx, user.ID, ref); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": "deleted"})
}

type castVoteRequest struct {
	ContentID   uint   `json:"contentId"`
	ContentType string `json:"contentType"`
	Direction   string `json:"direction"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	ref, err := refFromRequest(req.ContentID, req.ContentType)
	if err != nil {
		return err
	}
	dir, err := models.ParseVoteDir(req.Direction)
	if err != nil {
		return err
	}

	net, err := s.ledger.CastVote(ctx, user.ID, ref, dir)
	if err != nil {
		return err
	}

	return c.JSON(200, map[string]int64{"netScore": net})
}

type submitReportRequest struct {
	ContentID   uint   `json:"contentId"`
	ContentType string `json:"contentType"`
	Reason      string `json:"reason"`
	Context     string `json:"context,omitempty"`
}

func (s *Server) handleSubmitReport(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req submitReportRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	ref, err := refFromRequest(req.ContentID, req.ContentType)
	if err != nil {
		return err
	}
	reason, err := models.ParseReportReason(req.Reason)
	if err != nil {
		return err
	}

	report, err := s.intake.SubmitReport(ctx, user.ID, ref, reason, req.Context)
	if err != nil {
		return err
	}

	return c.JSON(200, map[string]any{"reportId": report.ID, "status": string(report.Status)})
}

type resolveReportRequest struct {
	ReportID uint   `json:"reportId"`
	Decision string `json:"decision"`
}

func (s *Server) handleResolveReport(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req resolveReportRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	decision, err := moderation.ParseDecision(req.Decision)
	if err != nil {
		return err
	}

	status, err := s.sm.ResolveReport(ctx, user.ID, req.ReportID, decision)
	if err != nil {
		return err
	}

	return c.JSON(200, map[string]string{"status": string(status)})
}

func (s *Server) handleModerationQueue(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))

	var filter *models.ReportStatus
	if v := c.QueryParam("status"); v != "" {
		st, err := parseReportStatus(v)
		if err != nil {
			return err
		}
		filter = &st
	}

	reports, err := s.intake.QueryModerationQueue(ctx, page, pageSize, filter)
	if err != nil {
		return err
	}
	return c.JSON(200, reports)
}

func parseReportStatus(s string) (models.ReportStatus, error) {
	switch models.ReportStatus(s) {
	case models.ReportStatusPending, models.ReportStatusReviewed,
		models.ReportStatusActionTaken, models.ReportStatusDismissed:
		return models.ReportStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown report status %q", models.ErrValidation, s)
	}
}

type transitionRequest struct {
	ContentID   uint   `json:"contentId"`
	ContentType string `json:"contentType"`
	To          string `json:"to"`
	Reason      string `json:"reason,omitempty"`
}

func (s *Server) handleTransition(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	ref, err := refFromRequest(req.ContentID, req.ContentType)
	if err != nil {
		return err
	}
	to, err := models.ParseModerationStatus(req.To)
	if err != nil {
		return err
	}

	if err := s.sm.Transition(ctx, user.ID, ref, to, req.Reason); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": string(to)})
}

func (s *Server) handleAuditTrail(c echo.Context) error {
	ctx := c.Request().Context()

	id, _ := strconv.ParseUint(c.QueryParam("contentId"), 10, 64)
	ref, err := refFromRequest(uint(id), c.QueryParam("contentType"))
	if err != nil {
		return err
	}

	trail, err := s.sm.AuditTrail(ctx, ref)
	if err != nil {
		return err
	}
	return c.JSON(200, trail)
}

func (s *Server) handleGetReputation(c echo.Context) error {
	ctx := c.Request().Context()

	uid, err := strconv.ParseUint(c.QueryParam("userId"), 10, 64)
	if err != nil || uid == 0 {
		return fmt.Errorf("%w: missing or malformed userId", models.ErrValidation)
	}

	score, tier, err := s.rep.GetReputation(ctx, uint(uid))
	if err != nil {
		return err
	}
	return c.JSON(200, map[string]any{"score": score, "tier": tier})
}

func (s *Server) handleRecentEvents(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	evts, err := s.persist.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return c.JSON(200, evts)
}

func (s *Server) handleGetNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	notifs, err := s.notifman.GetNotifications(ctx, user.ID, limit)
	if err != nil {
		return err
	}

	count, err := s.notifman.GetCount(ctx, user.ID)
	if err != nil {
		return err
	}

	return c.JSON(200, map[string]any{"unread": count, "notifications": notifs})
}

func (s *Server) handleUpdateSeen(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	if err := s.notifman.UpdateSeen(ctx, user.ID, time.Now()); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

type verifyRequest struct {
	UserID   uint `json:"userId"`
	Verified bool `json:"verified"`
}

func (s *Server) handleVerifyUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	if err := s.cstore.SetVerified(ctx, req.UserID, req.Verified); err != nil {
		return err
	}

	// verification carries a score bonus
	s.rep.Enqueue(req.UserID)
	return c.JSON(200, map[string]string{"status": "ok"})
}

type banRequest struct {
	UserID uint   `json:"userId"`
	Reason string `json:"reason"`
}

func (s *Server) handleBanUser(c echo.Context) error {
	ctx := c.Request().Context()
	user := getUser(ctx)

	var req banRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err)
	}
	if req.UserID == user.ID {
		return fmt.Errorf("%w: cannot ban self", models.ErrValidation)
	}

	if err := s.cstore.BanUser(ctx, req.UserID, req.Reason); err != nil {
		return err
	}
	return c.JSON(200, map[string]string{"status": "banned"})
}
