package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/TrumanStellar/Story-Creation/internal/chain"
	"github.com/TrumanStellar/Story-Creation/internal/chain/stellar"
)

const defaultChain = "stellar"

func chainParam(r *http.Request) string {
	if v := r.URL.Query().Get("chain"); v != "" {
		return v
	}
	return defaultChain
}

// limitParam reads the list cap from the query string. Out-of-range and
// malformed values fall back to the default.
func limitParam(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 && i <= 1000 {
			limit = i
		}
	}
	return limit
}

func uintParam(r *http.Request, name string) (uint64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	for _, integr := range s.registry.List() {
		resp.Chains = append(resp.Chains, ChainStatus{
			ID:             integr.ChainID(),
			Name:           integr.Name(),
			FactoryAddress: integr.FactoryAddress(),
		})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// listStories handles GET /api/v1/stories
func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.db.ListStories(chainParam(r))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if id, ok := uintParam(r, "story_id"); ok {
		filtered := stories[:0]
		for _, st := range stories {
			if st.ChainStoryID == id {
				filtered = append(filtered, st)
			}
		}
		stories = filtered
	}
	if limit := limitParam(r); len(stories) > limit {
		stories = stories[:limit]
	}
	s.listResponse(w, stories, len(stories))
}

// listTasks handles GET /api/v1/tasks
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.ListTasks(chainParam(r))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if id, ok := uintParam(r, "story_id"); ok {
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.ChainStoryID == id {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if limit := limitParam(r); len(tasks) > limit {
		tasks = tasks[:limit]
	}
	s.listResponse(w, tasks, len(tasks))
}

// listSubmits handles GET /api/v1/submits
func (s *Server) listSubmits(w http.ResponseWriter, r *http.Request) {
	submits, err := s.db.ListSubmits(chainParam(r))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	storyID, hasStory := uintParam(r, "story_id")
	taskID, hasTask := uintParam(r, "task_id")
	if hasStory || hasTask {
		filtered := submits[:0]
		for _, sub := range submits {
			if hasStory && sub.ChainStoryID != storyID {
				continue
			}
			if hasTask && sub.ChainTaskID != taskID {
				continue
			}
			filtered = append(filtered, sub)
		}
		submits = filtered
	}
	if limit := limitParam(r); len(submits) > limit {
		submits = submits[:limit]
	}
	s.listResponse(w, submits, len(submits))
}

// listAssets handles GET /api/v1/assets
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	if id, ok := uintParam(r, "story_id"); ok {
		asset, err := s.db.GetAsset(chainParam(r), id)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		if asset == nil {
			s.errorResponse(w, http.StatusNotFound, "asset not found")
			return
		}
		s.jsonResponse(w, http.StatusOK, asset)
		return
	}

	assets, err := s.db.ListAssets(chainParam(r))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limit := limitParam(r); len(assets) > limit {
		assets = assets[:limit]
	}
	s.listResponse(w, assets, len(assets))
}

// listTransactions handles GET /api/v1/transactions
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.db.ListTransactions(chainParam(r))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limit := limitParam(r); len(txs) > limit {
		txs = txs[:limit]
	}
	s.listResponse(w, txs, len(txs))
}

// authedRequest is the part of every envelope-building request that proves
// the caller controls PublicKey: Signature is an ed25519 signature over
// Message, in the wallet's byte-array text form.
type authedRequest struct {
	Chain     string `json:"chain"`
	PublicKey string `json:"public_key"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// authorize decodes the request body into dst (which embeds authedRequest)
// and verifies the signature against the named chain. It writes the error
// response itself; callers bail out on false.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, req *authedRequest) (chain.Integration, bool) {
	if req.Chain == "" {
		req.Chain = defaultChain
	}
	integr, ok := s.registry.Get(req.Chain)
	if !ok {
		s.errorResponse(w, http.StatusBadRequest, "unknown chain: "+req.Chain)
		return nil, false
	}
	if req.PublicKey == "" || req.Message == "" || req.Signature == "" {
		s.errorResponse(w, http.StatusBadRequest, "public_key, message and signature are required")
		return nil, false
	}
	valid, err := integr.IsValidSignature(req.PublicKey, req.Message, req.Signature)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if !valid {
		s.errorResponse(w, http.StatusUnauthorized, "signature verification failed")
		return nil, false
	}
	return integr, true
}

func (s *Server) decodePost(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// builderError maps builder rejections onto HTTP statuses.
func (s *Server) builderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stellar.ErrAssetNotFound):
		s.errorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, stellar.ErrAlreadyPublished):
		s.errorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, stellar.ErrOverClaim), errors.Is(err, stellar.ErrOverSupply):
		s.errorResponse(w, http.StatusBadRequest, err.Error())
	default:
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) requireStellar(w http.ResponseWriter) bool {
	if s.stellar == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "stellar integration is disabled")
		return false
	}
	return true
}

type publishAssetRequest struct {
	authedRequest
	StoryID        uint64 `json:"story_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ImageCID       string `json:"image_cid"`
	MetadataCID    string `json:"metadata_cid"`
	Total          string `json:"total"`
	Price          string `json:"price"`
	AuthorReserved string `json:"author_reserved"`
}

// publishAsset handles POST /api/v1/assets/publish
func (s *Server) publishAsset(w http.ResponseWriter, r *http.Request) {
	var req publishAssetRequest
	if !s.decodePost(w, r, &req) || !s.requireStellar(w) {
		return
	}
	if _, ok := s.authorize(w, r, &req.authedRequest); !ok {
		return
	}

	env, err := s.stellar.PublishAsset(r.Context(), stellar.PublishAssetParams{
		PublicKey:      req.PublicKey,
		StoryID:        req.StoryID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		ImageCID:       req.ImageCID,
		MetadataCID:    req.MetadataCID,
		Total:          req.Total,
		Price:          req.Price,
		AuthorReserved: req.AuthorReserved,
	})
	if err != nil {
		s.builderError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, env)
}

type buyAssetRequest struct {
	authedRequest
	StoryID uint64 `json:"story_id"`
	Amount  string `json:"amount"`
}

// buyAsset handles POST /api/v1/assets/buy
func (s *Server) buyAsset(w http.ResponseWriter, r *http.Request) {
	var req buyAssetRequest
	if !s.decodePost(w, r, &req) || !s.requireStellar(w) {
		return
	}
	if _, ok := s.authorize(w, r, &req.authedRequest); !ok {
		return
	}

	story, err := s.db.GetStory(req.Chain, req.StoryID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if story == nil {
		s.errorResponse(w, http.StatusNotFound, "story not found")
		return
	}

	env, err := s.stellar.BuyAsset(r.Context(), stellar.BuyAssetParams{
		PublicKey:   req.PublicKey,
		StoryID:     req.StoryID,
		Amount:      req.Amount,
		StoryAuthor: story.Author,
	})
	if err != nil {
		s.builderError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, env)
}

type claimAssetRequest struct {
	authedRequest
	StoryID uint64 `json:"story_id"`
	Amount  string `json:"amount"`
}

// claimAsset handles POST /api/v1/assets/claim
func (s *Server) claimAsset(w http.ResponseWriter, r *http.Request) {
	var req claimAssetRequest
	if !s.decodePost(w, r, &req) || !s.requireStellar(w) {
		return
	}
	if _, ok := s.authorize(w, r, &req.authedRequest); !ok {
		return
	}

	env, err := s.stellar.ClaimReservedAsset(r.Context(), stellar.ClaimReservedAssetParams{
		PublicKey: req.PublicKey,
		StoryID:   req.StoryID,
		Amount:    req.Amount,
	})
	if err != nil {
		s.builderError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, env)
}

type taskTransferRequest struct {
	authedRequest
	StoryID uint64 `json:"story_id"`
	Amount  string `json:"amount"`
}

// taskRewardTransfer handles POST /api/v1/tasks/transfer
func (s *Server) taskRewardTransfer(w http.ResponseWriter, r *http.Request) {
	var req taskTransferRequest
	if !s.decodePost(w, r, &req) || !s.requireStellar(w) {
		return
	}
	if _, ok := s.authorize(w, r, &req.authedRequest); !ok {
		return
	}

	env, err := s.stellar.TaskRewardTransfer(r.Context(), stellar.TaskRewardTransferParams{
		PublicKey: req.PublicKey,
		StoryID:   req.StoryID,
		Amount:    req.Amount,
	})
	if err != nil {
		s.builderError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, env)
}
