package core

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	value := chi.URLParam(r, key)

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid format for path param '%s' - '%s'", key, value)
	}

	return id, nil
}

func URLParamUint64(r *http.Request, key string) (uint64, error) {
	value := chi.URLParam(r, key)

	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid format for path param '%s' - '%s'", key, value)
	}

	return n, nil
}
