package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/voicelink/internal/store"
)

const (
	defaultAdLimit = 10
	maxAdLimit     = 20
)

// AdHandlers serves ad slots and the admin ad API.
type AdHandlers struct {
	store store.AdStore
	log   *zerolog.Logger
}

// NewAdHandlers creates a new ad handlers instance.
func NewAdHandlers(st store.AdStore, logger *zerolog.Logger) *AdHandlers {
	return &AdHandlers{
		store: st,
		log:   logger,
	}
}

// AdResponse is an ad as served to clients.
type AdResponse struct {
	ID       string `json:"id"`
	SlotKey  string `json:"slotKey"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	LinkURL  string `json:"linkUrl"`
}

// AdminAdResponse adds the fields only admins see.
type AdminAdResponse struct {
	AdResponse
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// AdsResponse wraps a list of ads.
type AdsResponse struct {
	Ads []AdResponse `json:"ads"`
}

// AdRequest is the body for creating or replacing an ad.
type AdRequest struct {
	SlotKey  string `json:"slotKey" binding:"required,max=64"`
	Title    string `json:"title" binding:"required,max=200"`
	ImageURL string `json:"imageUrl" binding:"required"`
	LinkURL  string `json:"linkUrl" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

// SetActiveRequest toggles an ad.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func adResponse(ad *store.Ad) AdResponse {
	return AdResponse{
		ID:       ad.ID,
		SlotKey:  ad.SlotKey,
		Title:    ad.Title,
		ImageURL: ad.ImageURL,
		LinkURL:  ad.LinkURL,
	}
}

func adminAdResponse(ad *store.Ad) AdminAdResponse {
	return AdminAdResponse{
		AdResponse: adResponse(ad),
		IsActive:   ad.IsActive,
		CreatedAt:  ad.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  ad.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// parseAdLimit clamps the limit to 1..20. Absent means 10; unparsable means 1.
func parseAdLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultAdLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return min(n, maxAdLimit)
}

// ListActive returns active ads for a slot.
// GET /api/ads?slotKey=&limit=
func (h *AdHandlers) ListActive(c *gin.Context) {
	slotKey := strings.TrimSpace(c.Query("slotKey"))
	limit := parseAdLimit(c.Query("limit"))

	c.Header("Cache-Control", "no-store")

	ads, err := h.store.ListActiveAds(c.Request.Context(), slotKey, limit)
	if err != nil {
		h.log.Error().Err(err).Str("slot", slotKey).Msg("failed to list ads")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := AdsResponse{Ads: make([]AdResponse, 0, len(ads))}
	for _, ad := range ads {
		resp.Ads = append(resp.Ads, adResponse(ad))
	}
	c.JSON(http.StatusOK, resp)
}

func validAdURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *AdHandlers) bindAd(c *gin.Context) (*store.Ad, bool) {
	var req AdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return nil, false
	}
	if !validAdURL(req.ImageURL) || !validAdURL(req.LinkURL) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "imageUrl and linkUrl must be absolute http(s) urls"})
		return nil, false
	}
	ad := &store.Ad{
		SlotKey:  strings.TrimSpace(req.SlotKey),
		Title:    strings.TrimSpace(req.Title),
		ImageURL: req.ImageURL,
		LinkURL:  req.LinkURL,
		IsActive: true,
	}
	if req.IsActive != nil {
		ad.IsActive = *req.IsActive
	}
	return ad, true
}

// Create adds an ad.
// POST /api/admin/ads
func (h *AdHandlers) Create(c *gin.Context) {
	ad, ok := h.bindAd(c)
	if !ok {
		return
	}
	if err := h.store.CreateAd(c.Request.Context(), ad); err != nil {
		h.log.Error().Err(err).Msg("failed to create ad")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("ad_id", ad.ID).Str("slot", ad.SlotKey).Msg("ad created")
	c.JSON(http.StatusCreated, adminAdResponse(ad))
}

// Update replaces an ad's slot, title and links. Activity is changed via SetActive.
// PUT /api/admin/ads/:id
func (h *AdHandlers) Update(c *gin.Context) {
	ad, ok := h.bindAd(c)
	if !ok {
		return
	}
	ad.ID = c.Param("id")

	if err := h.store.UpdateAd(c.Request.Context(), ad); err != nil {
		h.storeError(c, ad.ID, err)
		return
	}
	updated, err := h.store.GetAd(c.Request.Context(), ad.ID)
	if err != nil {
		h.storeError(c, ad.ID, err)
		return
	}
	c.JSON(http.StatusOK, adminAdResponse(updated))
}

// SetActive turns an ad on or off.
// PATCH /api/admin/ads/:id/active
func (h *AdHandlers) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	id := c.Param("id")
	if err := h.store.SetAdActive(c.Request.Context(), id, *req.IsActive); err != nil {
		h.storeError(c, id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes an ad.
// DELETE /api/admin/ads/:id
func (h *AdHandlers) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteAd(c.Request.Context(), id); err != nil {
		h.storeError(c, id, err)
		return
	}
	h.log.Info().Str("ad_id", id).Msg("ad deleted")
	c.Status(http.StatusNoContent)
}

func (h *AdHandlers) storeError(c *gin.Context, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ad not found"})
		return
	}
	h.log.Error().Err(err).Str("ad_id", id).Msg("ad operation failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
