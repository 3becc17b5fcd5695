package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/imagine3d/api"
	"github.com/BaSui01/imagine3d/config"
	"github.com/BaSui01/imagine3d/types"
)

// maxAppIDs 单个调用方可配置的能力数上限
const maxAppIDs = 32

// UserConfigHandler 调用方配置处理器
type UserConfigHandler struct {
	registry *config.UserRegistry
	logger   *zap.Logger
}

// NewUserConfigHandler 创建调用方配置处理器
func NewUserConfigHandler(registry *config.UserRegistry, logger *zap.Logger) *UserConfigHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserConfigHandler{
		registry: registry,
		logger:   logger.With(zap.String("handler", "user_config")),
	}
}

// HandleGet 处理 GET /api/v1/users/{id}/config
// @Summary 查询调用方配置
// @Tags 调用方
// @Produce json
// @Param id path string true "调用方 ID"
// @Success 200 {object} Response{data=api.UserConfig} "配置"
// @Failure 404 {object} Response "调用方不存在"
// @Router /api/v1/users/{id}/config [get]
func (h *UserConfigHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	uc, found := h.registry.Get(userID)
	if !found {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "user not configured", h.logger)
		return
	}
	WriteSuccess(w, r, api.UserConfig{UserID: userID, AppIDs: nonNil(uc.AppIDs)})
}

// HandlePut 处理 PUT /api/v1/users/{id}/config
// 新配置只影响之后开始的运行。
// @Summary 更新调用方配置
// @Tags 调用方
// @Accept json
// @Produce json
// @Param id path string true "调用方 ID"
// @Param request body api.UserConfig true "能力配置"
// @Success 200 {object} Response{data=api.UserConfig} "更新后的配置"
// @Router /api/v1/users/{id}/config [put]
func (h *UserConfigHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.UserConfig
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.UserID != "" && req.UserID != userID {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "user_id does not match the path", h.logger)
		return
	}

	appIDs, err := cleanAppIDs(req.AppIDs)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	h.registry.Set(userID, config.UserConfig{AppIDs: appIDs})
	h.logger.Info("user configuration updated",
		zap.String("user_id", userID),
		zap.Strings("app_ids", appIDs),
	)
	WriteSuccess(w, r, api.UserConfig{UserID: userID, AppIDs: appIDs})
}

// authorize 认证后的调用方只能访问自己的配置
func (h *UserConfigHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.PathValue("id"))
	if userID == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "user id is required", h.logger)
		return "", false
	}
	if caller, ok := types.UserID(r.Context()); ok && caller != userID {
		WriteErrorMessage(w, r, http.StatusForbidden, types.ErrForbidden, "cannot access another user's configuration", h.logger)
		return "", false
	}
	return userID, true
}

// cleanAppIDs trims ids and drops blanks and duplicates, keeping order.
func cleanAppIDs(ids []string) ([]string, *types.Error) {
	if len(ids) > maxAppIDs {
		return nil, types.NewError(types.ErrInvalidRequest, "too many app_ids")
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
