package settings

// Well-known settings keys. Encrypted values are stored as opaque hex blobs
// produced by the vault; everything else is a plain string ("true"/"false"
// for booleans).
const (
	// KeyCompanionEnabled globally enables the companion gateway
	KeyCompanionEnabled = "integrations.companionServerEnabled"

	// KeyPairingEnabled is the encrypted pairing-window flag
	KeyPairingEnabled = "integrations.companionServerAuthWindowEnabled"

	// KeyPairingOpenedAt is the encrypted absolute open timestamp of the
	// pairing window. Only the start time is persisted; remaining time is
	// always recomputed from it.
	KeyPairingOpenedAt = "state.companionServerAuthWindowEnableTime"

	// KeyAuthTokens is the encrypted companion token collection
	KeyAuthTokens = "integrations.companionServerAuthTokens"

	// KeyPresenceEnabled enables the presence integration
	KeyPresenceEnabled = "integrations.discordPresenceEnabled"

	// KeyNowPlayingNotify enables now-playing desktop notifications
	KeyNowPlayingNotify = "notifications.nowPlaying"

	// KeyLastVideoID and KeyLastPlaylistID record the last played track for
	// restart resume; written by the telemetry normalizer, read by the
	// embedding shell.
	KeyLastVideoID    = "state.lastVideoId"
	KeyLastPlaylistID = "state.lastPlaylistId"
)
