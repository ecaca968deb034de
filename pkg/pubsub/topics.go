package pubsub

// Stream names used across Evently services.
const (
	TopicUserEvents     = "user.events"
	TopicSiteRevalidate = "site.revalidate"
)
