package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"clan-backend/internal/authz"
	"clan-backend/internal/dto"
	"clan-backend/internal/entities"
	apperrors "clan-backend/pkg/errors"
)

type AccessMatrixServiceInterface interface {
	Overview(ctx context.Context) (*dto.AccessOverviewDTO, error)
	ExportXLSX(ctx context.Context) (*bytes.Buffer, error)
}

type AccessMatrixService struct {
	gatekeeper *authz.Gatekeeper
	logger     *zap.Logger
}

func NewAccessMatrixService(gatekeeper *authz.Gatekeeper, logger *zap.Logger) AccessMatrixServiceInterface {
	return &AccessMatrixService{gatekeeper: gatekeeper, logger: logger}
}

func toUserPublic(u *entities.User) dto.UserPublicDTO {
	return dto.UserPublicDTO{
		ID:          u.ID,
		UID:         u.UID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		BranchID:    u.BranchID,
	}
}

// Overview: права вызывающего по каждому зарегистрированному ресурсу.
func (s *AccessMatrixService) Overview(ctx context.Context) (*dto.AccessOverviewDTO, error) {
	principal := authz.PrincipalFrom(ctx)
	if !principal.IsAuthenticated() {
		return nil, apperrors.ErrUnauthenticated
	}

	resources := s.gatekeeper.Registry().Resources()
	overview := &dto.AccessOverviewDTO{
		User:      toUserPublic(principal),
		Resources: make([]dto.AccessEntryDTO, 0, len(resources)),
	}

	for _, res := range resources {
		entry := dto.AccessEntryDTO{Resource: res.Key, Verbs: []authz.Verb{}}
		for _, verb := range authz.Verbs {
			if !res.Allows(verb) {
				continue
			}
			ok, err := s.gatekeeper.Authorize(ctx, principal, res.Key, verb)
			if err != nil {
				return nil, err
			}
			if ok {
				entry.Verbs = append(entry.Verbs, verb)
			}
		}

		switch {
		case len(entry.Verbs) == 0:
			entry.Scope = authz.NoRows()
		case res.BranchScoped():
			scope, err := s.gatekeeper.Scope(ctx, principal, res.Key)
			if err != nil {
				return nil, err
			}
			entry.Scope = scope
		default:
			entry.Scope = authz.AllRows()
		}

		var err error
		if entry.ViewFields, err = s.gatekeeper.FieldsFor(ctx, principal, res.Key, authz.PhaseView); err != nil {
			return nil, err
		}
		if entry.CreateFields, err = s.gatekeeper.FieldsFor(ctx, principal, res.Key, authz.PhaseCreate); err != nil {
			return nil, err
		}
		if entry.EditFields, err = s.gatekeeper.FieldsFor(ctx, principal, res.Key, authz.PhaseEdit); err != nil {
			return nil, err
		}
		overview.Resources = append(overview.Resources, entry)
	}
	return overview, nil
}

var matrixHeaders = []interface{}{"Ресурс", "Просмотр", "Создание", "Изменение", "Удаление", "Область", "Филиалы", "Поля просмотра", "Поля создания", "Поля изменения"}

func (s *AccessMatrixService) ExportXLSX(ctx context.Context) (*bytes.Buffer, error) {
	overview, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("ошибка закрытия книги Excel", zap.Error(err))
		}
	}()

	sheet := "Доступ"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("excel: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &matrixHeaders); err != nil {
		return nil, fmt.Errorf("excel: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", "J1", style)
	}

	for i, entry := range overview.Resources {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("excel: %w", err)
		}
		row := matrixRow(entry)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("excel: %w", err)
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "F", "G", 20)
	_ = f.SetColWidth(sheet, "H", "J", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("excel: %w", err)
	}
	return buf, nil
}

func matrixRow(entry dto.AccessEntryDTO) []interface{} {
	has := func(v authz.Verb) string {
		for _, got := range entry.Verbs {
			if got == v {
				return "да"
			}
		}
		return "нет"
	}
	branches := make([]string, len(entry.Scope.Branches))
	for i, b := range entry.Scope.Branches {
		branches[i] = fmt.Sprint(b)
	}
	return []interface{}{
		string(entry.Resource),
		has(authz.VerbView), has(authz.VerbCreate), has(authz.VerbEdit), has(authz.VerbDelete),
		string(entry.Scope.Kind),
		strings.Join(branches, ", "),
		strings.Join(entry.ViewFields.Names(), ", "),
		strings.Join(entry.CreateFields.Names(), ", "),
		strings.Join(entry.EditFields.Names(), ", "),
	}
}
