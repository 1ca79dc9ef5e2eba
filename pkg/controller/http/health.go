package http

import (
	"net/http"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/types"
)

// handleHealth reports liveness along with the number of cached contents
func handleHealth(cacheUC interfaces.OfflineCacheUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := &model.HealthStatus{
			Status:         "healthy",
			Service:        types.AppName,
			Version:        types.Version,
			CachedContents: len(cacheUC.GetDownloadedContentList(r.Context())),
		}
		writeJSON(r.Context(), w, http.StatusOK, status)
	}
}
