package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

func (r *Router) handleTranslate(w http.ResponseWriter, req *http.Request) {
	var body translateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, KindValidation, "text is required")
		return
	}
	if strings.TrimSpace(body.TargetLanguage) == "" {
		writeError(w, http.StatusBadRequest, KindValidation, "targetLanguage is required")
		return
	}

	result, err := r.translator.Translate(req.Context(), body.Text, body.TargetLanguage, body.SourceLanguage)
	if err != nil {
		// The chain ends in a provider that cannot fail, so errors here
		// only ever mean bad arguments.
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
