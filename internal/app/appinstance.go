package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// poaType is the APS type of the provider root resource a hub exposes.
const poaType = "http://parallels.com/aps/types/pa/poa/1.0"

// CreateAppInstance registers a new application instance and binds it to the
// hub it was installed on.
func (s *Service) CreateAppInstance(ctx context.Context, sc Scope, ref domain.APSRef) (Response, error) {
	hubID, err := providerHub(ctx, sc, ref.ID)
	if err != nil {
		return Response{}, err
	}
	appID, err := generateID()
	if err != nil {
		return Response{}, fmt.Errorf("generating app id: %w", err)
	}
	if err := s.bind(ctx, sc, ref.ID, hubID); err != nil {
		return Response{}, err
	}

	slog.InfoContext(ctx, "app instance created",
		"app_instance_id", ref.ID,
		"hub_id", hubID,
	)
	return Response{
		Status: http.StatusCreated,
		Body:   domain.AppInstance{APS: ref, AppID: appID, HubID: hubID},
	}, nil
}

// UpdateAppInstance refreshes the hub of an application instance and echoes
// the instance with it.
func (s *Service) UpdateAppInstance(ctx context.Context, sc Scope, appID string, raw []byte) (Response, error) {
	body := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return Response{}, fmt.Errorf("decoding app instance: %w", err)
		}
	}
	hubID, err := providerHub(ctx, sc, appID)
	if err != nil {
		return Response{}, err
	}
	if err := s.bind(ctx, sc, appID, hubID); err != nil {
		return Response{}, err
	}
	body["hubId"] = hubID
	return Response{Status: http.StatusOK, Body: body}, nil
}

// DeleteAppInstance forgets the hub binding of an application instance.
func (s *Service) DeleteAppInstance(ctx context.Context, appID string) (Response, error) {
	err := s.backends.Installations.UnbindApp(ctx, appID)
	if err != nil && !errors.Is(err, domain.ErrAppInstanceNotFound) {
		return Response{}, fmt.Errorf("unbinding app %s: %w", appID, err)
	}
	return noContent(), nil
}

func (s *Service) bind(ctx context.Context, sc Scope, appID, hubID string) error {
	repo := s.backends.Installations
	if err := repo.BindApp(ctx, appID, hubID); err != nil {
		return fmt.Errorf("binding app %s to hub %s: %w", appID, hubID, err)
	}
	return repo.TouchHub(ctx, domain.HubInstance{
		HubID:         hubID,
		AppInstanceID: appID,
		ControllerURI: sc.Origin.ControllerURI,
		LastCheck:     s.now().UTC(),
	})
}

// hubForApp returns the hub an application instance lives on. Instances
// installed before bindings were recorded are resolved through OA once.
func (s *Service) hubForApp(ctx context.Context, sc Scope, appID string) (string, error) {
	hubID, err := s.backends.Installations.HubForApp(ctx, appID)
	if err == nil {
		return hubID, nil
	}
	if !errors.Is(err, domain.ErrHubNotFound) {
		return "", fmt.Errorf("reading hub of app %s: %w", appID, err)
	}

	hubID, err = providerHub(ctx, sc, appID)
	if err != nil {
		return "", err
	}
	if err := s.bind(ctx, sc, appID, hubID); err != nil {
		slog.WarnContext(ctx, "recording hub binding",
			"app_instance_id", appID,
			"hub_id", hubID,
			"error", err,
		)
	}
	return hubID, nil
}

// providerHub reads the provider root resource visible to the application
// instance. Its APS id identifies the hub.
func providerHub(ctx context.Context, sc Scope, appID string) (string, error) {
	found, err := sc.OA.FindResources(ctx, "implementing("+poaType+")", domain.ResourceOptions{ImpersonateAs: appID})
	if err != nil {
		return "", fmt.Errorf("reading provider of app %s: %w", appID, err)
	}
	if len(found) == 0 {
		return "", domain.ErrHubNotFound
	}
	var poa struct {
		APS struct {
			ID string `json:"id"`
		} `json:"aps"`
	}
	if err := json.Unmarshal(found[0], &poa); err != nil {
		return "", fmt.Errorf("decoding provider of app %s: %w", appID, err)
	}
	if poa.APS.ID == "" {
		return "", domain.ErrHubNotFound
	}
	return poa.APS.ID, nil
}
