package handler

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/portalcms/account-gateway/internal/core/domain"
	"github.com/portalcms/account-gateway/internal/core/ports"
)

// GroupHandler exposes account group inspection to administrators.
type GroupHandler struct {
	groups ports.GroupRepository
}

func NewGroupHandler(groups ports.GroupRepository) *GroupHandler {
	return &GroupHandler{groups: groups}
}

type groupResponse struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Flags       domain.GroupFlags `json:"flags"`
	Permissions []string          `json:"permissions"`
}

// Get godoc
// @Summary      Inspect an account group
// @Description  Returns a group's flags and its granted permission keys.
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "Group ID"
// @Success      200  {object}  groupResponse
// @Failure      404  {object}  errorResponse
// @Router       /admin/groups/{id} [get]
func (h *GroupHandler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid group id")
	}

	group, err := h.groups.FindGroup(c.Request().Context(), id)
	if err != nil {
		return err
	}

	granted := domain.DecodePermissions(group.Permissions)
	keys := make([]string, 0, len(granted))
	for key, ok := range granted {
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return c.JSON(http.StatusOK, groupResponse{
		ID:          group.ID,
		Title:       group.Title,
		Flags:       group.Flags,
		Permissions: keys,
	})
}

// PermissionKeys godoc
// @Summary      List canonical permission keys
// @Description  Returns every permission key the portal currently recognises.
// @Tags         admin
// @Produce      json
// @Success      200  {array}  string
// @Router       /admin/permissions [get]
func (h *GroupHandler) PermissionKeys(c echo.Context) error {
	keys, err := h.groups.ListPermissionKeys(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, keys)
}
