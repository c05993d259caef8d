package persistence

import (
	"fmt"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMongoDb connects lazily; callers should Ping before relying on it.
func NewMongoDb(host, port, user, password, name string) (*mongo.Client, error) {
	if host == "" {
		return nil, fmt.Errorf("mongo host not configured")
	}
	return mongo.Connect(options.Client().ApplyURI(mongoURI(host, port, user, password, name)).SetAppName("social-publisher"))
}

func mongoURI(host, port, user, password, name string) string {
	u := &url.URL{Scheme: "mongodb", Host: host, Path: "/" + name}
	if port != "" {
		u.Host = host + ":" + port
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
		u.RawQuery = "authSource=admin"
	}
	return u.String()
}
