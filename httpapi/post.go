package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"garden.dev/garden/protocol"
	"garden.dev/garden/substrate"
)

type createPostRequest struct {
	SigningKey string   `json:"signing_key"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
}

// createPost implements POST /api/v1/post. On success the body is the JSON
// literal null; on failure it is {"error":{"code","message"}}.
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	signingKeyBytes, err := base64.StdEncoding.DecodeString(req.SigningKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SIGNING_KEY", "signing_key must be base64")
		return
	}

	content, err := protocol.NewContent(req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONTENT", err.Error())
		return
	}
	tags := make([]protocol.Tag, 0, len(req.Tags))
	for _, raw := range req.Tags {
		tag, err := protocol.NewTag(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TAG", err.Error())
			return
		}
		tags = append(tags, tag)
	}
	event, err := protocol.NewPostEvent(content, tags)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_POST", err.Error())
		return
	}

	if err := s.handler.SendPost(substrate.SigningKey(signingKeyBytes), s.address, event); err != nil {
		writeError(w, http.StatusInternalServerError, "PUBLISH_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type reactionView struct {
	Name   string `json:"name"`
	Author string `json:"author"`
}

type postView struct {
	Status    string         `json:"status"`
	Content   string         `json:"content"`
	Tags      []string       `json:"tags"`
	Comments  []string       `json:"comments"`
	Reactions []reactionView `json:"reactions"`
}

// getPost implements GET /api/v1/post/{base64 hash}.
func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	hashParam := mux.Vars(r)["hash"]
	hash, err := protocol.HashFromBase64(hashParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_HASH", "hash must be base64")
		return
	}

	post, err := s.index.QueryPost(hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	if post == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no post with that hash")
		return
	}

	comments := make([]string, len(post.Comments))
	for i, h := range post.Comments {
		comments[i] = h.Base64()
	}
	reactions := make([]reactionView, len(post.Reactions))
	for i, reaction := range post.Reactions {
		reactions[i] = reactionView{
			Name:   reaction.Name,
			Author: base64.StdEncoding.EncodeToString(reaction.Author),
		}
	}

	writeJSON(w, http.StatusOK, postView{
		Status:    "ok",
		Content:   post.Content,
		Tags:      post.Tags,
		Comments:  comments,
		Reactions: reactions,
	})
}
