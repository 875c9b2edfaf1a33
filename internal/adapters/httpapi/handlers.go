package httpapi

import (
	"breadstamp/docs/schema/openapi"
	"breadstamp/internal/achievement"
	"breadstamp/internal/adapters/export"
	"breadstamp/internal/core"
	"breadstamp/pkg/domain"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const maxThumbnailSize = 1024

func badRequest(msg string) error { return echo.NewHTTPError(http.StatusBadRequest, msg) }

type mutationBody map[string]any

func withWarnings(body mutationBody, res domain.Result) mutationBody {
	if len(res.Violations) > 0 {
		body["violations"] = res.Violations
	}
	return body
}

func (s *Server) openAPI(c echo.Context) error {
	return c.Blob(http.StatusOK, "application/yaml", openapi.Spec())
}

type categoryView struct {
	Key  domain.BreadCategory `json:"key"`
	Name string               `json:"name"`
	Icon string               `json:"icon"`
}

func (s *Server) listCategories(c echo.Context) error {
	cats := s.svc.Categories()
	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryView{Key: cat, Name: cat.DisplayName(), Icon: cat.Icon()})
	}
	return c.JSON(http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) listBakeries(c echo.Context) error {
	list, err := s.svc.ListBakeries(c.Request().Context())
	if err != nil {
		return err
	}
	if fav := c.QueryParam("favorite"); fav != "" {
		want, err := strconv.ParseBool(fav)
		if err != nil {
			return badRequest("favorite must be a boolean")
		}
		filtered := list[:0]
		for _, b := range list {
			if b.IsFavorite == want {
				filtered = append(filtered, b)
			}
		}
		list = filtered
	}
	return c.JSON(http.StatusOK, map[string]any{"bakeries": list})
}

func (s *Server) createBakery(c echo.Context) error {
	var in core.BakeryInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid bakery payload")
	}
	bakery, res, err := s.svc.CreateBakery(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, withWarnings(mutationBody{"bakery": bakery}, res))
}

func (s *Server) getBakery(c echo.Context) error {
	summary, err := s.svc.GetBakery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"bakery": summary})
}

func (s *Server) updateBakery(c echo.Context) error {
	var upd core.BakeryUpdate
	if err := c.Bind(&upd); err != nil {
		return badRequest("invalid bakery payload")
	}
	bakery, res, err := s.svc.UpdateBakery(c.Request().Context(), c.Param("id"), upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, withWarnings(mutationBody{"bakery": bakery}, res))
}

func (s *Server) deleteBakery(c echo.Context) error {
	if _, err := s.svc.DeleteBakery(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) toggleFavorite(c echo.Context) error {
	bakery, res, err := s.svc.ToggleFavorite(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, withWarnings(mutationBody{"bakery": bakery}, res))
}

func (s *Server) breadsForBakery(c echo.Context) error {
	breads, err := s.svc.BreadsForBakery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"breads": orEmpty(breads)})
}

func orEmpty(breads []domain.Bread) []domain.Bread {
	if breads == nil {
		return []domain.Bread{}
	}
	return breads
}

func (s *Server) listBreads(c echo.Context) error {
	var filter core.BreadFilter
	if raw := c.QueryParam("category"); raw != "" {
		cat, err := domain.ParseCategory(raw)
		if err != nil {
			return badRequest(err.Error())
		}
		filter.Category = cat
	}
	filter.BakeryID = c.QueryParam("bakery_id")
	if raw := c.QueryParam("min_rating"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest("min_rating must be an integer")
		}
		filter.MinRating = n
	}
	return c.JSON(http.StatusOK, map[string]any{"breads": orEmpty(s.svc.ListBreads(c.Request().Context(), filter))})
}

func (s *Server) createBread(c echo.Context) error {
	var in core.BreadInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid bread payload")
	}
	bread, res, err := s.svc.CreateBread(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, withWarnings(mutationBody{"bread": bread}, res))
}

func (s *Server) getBread(c echo.Context) error {
	bread, err := s.svc.GetBread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"bread": bread})
}

func (s *Server) updateBread(c echo.Context) error {
	var upd core.BreadUpdate
	if err := c.Bind(&upd); err != nil {
		return badRequest("invalid bread payload")
	}
	bread, res, err := s.svc.UpdateBread(c.Request().Context(), c.Param("id"), upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, withWarnings(mutationBody{"bread": bread}, res))
}

func (s *Server) deleteBread(c echo.Context) error {
	if _, err := s.svc.DeleteBread(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type photoTarget struct {
	entity domain.EntityType
	key    string
}

var (
	bakeryPhotos = photoTarget{entity: domain.EntityBakery, key: "bakery"}
	breadPhotos  = photoTarget{entity: domain.EntityBread, key: "bread"}
)

func (s *Server) photoRoutes(g *echo.Group, prefix string, t photoTarget) {
	g.PUT(prefix+"/photo", s.putPhoto(t))
	g.DELETE(prefix+"/photo", s.deletePhoto(t))
	g.GET(prefix+"/photo", s.getPhoto(t))
	g.GET(prefix+"/photo/url", s.photoURL(t))
	g.GET(prefix+"/thumbnail", s.thumbnail(t))
}

func (s *Server) setPhoto(c echo.Context, t photoTarget, data []byte, contentType string) (any, error) {
	ctx := c.Request().Context()
	if t.entity == domain.EntityBakery {
		return s.svc.SetBakeryPhoto(ctx, c.Param("id"), data, contentType)
	}
	return s.svc.SetBreadPhoto(ctx, c.Param("id"), data, contentType)
}

func (s *Server) putPhoto(t photoTarget) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := io.ReadAll(io.LimitReader(c.Request().Body, core.MaxPhotoBytes+1))
		if err != nil {
			return badRequest("could not read photo body")
		}
		if len(data) == 0 {
			return badRequest("photo body is empty")
		}
		record, err := s.setPhoto(c, t, data, c.Request().Header.Get(echo.HeaderContentType))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{t.key: record})
	}
}

func (s *Server) deletePhoto(t photoTarget) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := s.setPhoto(c, t, nil, ""); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) getPhoto(t photoTarget) echo.HandlerFunc {
	return func(c echo.Context) error {
		info, data, err := s.svc.Photo(c.Request().Context(), t.entity, c.Param("id"))
		if err != nil {
			return err
		}
		if info.ETag != "" {
			etag := strconv.Quote(info.ETag)
			c.Response().Header().Set("ETag", etag)
			if c.Request().Header.Get("If-None-Match") == etag {
				return c.NoContent(http.StatusNotModified)
			}
		}
		ct := info.ContentType
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		return c.Blob(http.StatusOK, ct, data)
	}
}

func (s *Server) photoURL(t photoTarget) echo.HandlerFunc {
	return func(c echo.Context) error {
		var expiry time.Duration
		if raw := c.QueryParam("expiry"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return badRequest("expiry must be a positive duration")
			}
			expiry = d
		}
		url, err := s.svc.PhotoURL(c.Request().Context(), t.entity, c.Param("id"), expiry)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}
}

func (s *Server) thumbnail(t photoTarget) echo.HandlerFunc {
	return func(c echo.Context) error {
		size := 0
		if raw := c.QueryParam("size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxThumbnailSize {
				return badRequest(fmt.Sprintf("size must be between 1 and %d", maxThumbnailSize))
			}
			size = n
		}
		data, err := s.svc.Thumbnail(c.Request().Context(), t.entity, c.Param("id"), size)
		if err != nil {
			return err
		}
		c.Response().Header().Set("Cache-Control", "private, max-age=300")
		return c.Blob(http.StatusOK, "image/jpeg", data)
	}
}

func (s *Server) statistics(c echo.Context) error {
	st, err := s.svc.Statistics(c.Request().Context())
	if err != nil {
		return err
	}
	now := s.svc.Now().In(s.svc.Location())
	return c.JSON(http.StatusOK, map[string]any{
		"stats":                st,
		"breakdown":            st.Breakdown(),
		"current_month_visits": st.CurrentMonthVisits(now),
	})
}

type achievementView struct {
	domain.Achievement
	Unlocked bool    `json:"unlocked"`
	Progress float64 `json:"progress"`
	Guide    string  `json:"guide"`
}

func (s *Server) achievements(c echo.Context) error {
	ctx := c.Request().Context()
	all, err := s.svc.Achievements(ctx)
	if err != nil {
		return err
	}
	counters, err := s.svc.Counters(ctx)
	if err != nil {
		return err
	}
	view := func(a domain.Achievement) achievementView {
		return achievementView{
			Achievement: a,
			Unlocked:    a.IsUnlocked(),
			Progress:    achievement.Progress(a.Requirement, counters),
			Guide:       a.Guide(),
		}
	}
	items := make([]achievementView, 0, len(all))
	for _, a := range all {
		items = append(items, view(a))
	}
	body := map[string]any{
		"achievements":    items,
		"unlocked_count":  len(achievement.Unlocked(all)),
		"total_count":     len(all),
		"completion_rate": achievement.CompletionRate(all),
	}
	if next, ok := achievement.Next(all, counters); ok {
		body["next"] = view(next)
	}
	return c.JSON(http.StatusOK, body)
}

type exportRequest struct {
	Formats     []export.Format `json:"formats"`
	RequestedBy string          `json:"requested_by"`
}

func (s *Server) createExport(c echo.Context) error {
	var req exportRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest("invalid export payload")
		}
	}
	if req.RequestedBy == "" {
		req.RequestedBy = c.RealIP()
	}
	rec, err := s.exports.Enqueue(c.Request().Context(), export.Input{Formats: req.Formats, RequestedBy: req.RequestedBy})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]any{"export": rec})
}

func (s *Server) getExport(c echo.Context) error {
	rec, ok := s.exports.Get(c.Param("id"))
	if !ok {
		return core.ErrNotFound{Entity: "export", ID: c.Param("id")}
	}
	return c.JSON(http.StatusOK, map[string]any{"export": rec})
}

func (s *Server) downloadExport(c echo.Context) error {
	artifact, data, err := s.exports.Download(c.Request().Context(), c.Param("id"), c.Param("name"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Name))
	return c.Blob(http.StatusOK, artifact.ContentType, data)
}
