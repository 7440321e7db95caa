package domain

import "time"

// Installation binds OA OAuth credentials to a Connect product installation.
type Installation struct {
	OAuthKey       string
	OAuthSecret    string
	ProductID      string
	InstallationID string
}

// HubInstance tracks the APS controller of a connected OA hub.
type HubInstance struct {
	HubID         string
	AppInstanceID string
	ControllerURI string
	LastCheck     time.Time
}

// Origin identifies the OA call a piece of work originates from.
type Origin struct {
	OAuthKey      string `json:"oauth_key"`
	ControllerURI string `json:"controller_uri"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// APSRef identifies an APS resource.
type APSRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// AppInstance is an OA application instance bound to a hub.
type AppInstance struct {
	APS   APSRef `json:"aps"`
	AppID string `json:"appId"`
	HubID string `json:"hubId"`
}
