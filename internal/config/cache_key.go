package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding the JTI of a user's active access token
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// UserRefreshKey returns the cache key holding the JTI of a user's active refresh token
func (r *CacheKeyStruct) UserRefreshKey(userID string) string {
	return fmt.Sprintf("login:%s:refresh", userID)
}

// ActiveTestKey returns the cache key for the question set a user is currently taking
func (r *CacheKeyStruct) ActiveTestKey(userID string) string {
	return fmt.Sprintf("user:%s:active_test", userID)
}

// TestAnswersKey returns the cache key for the autosaved answers of a user's active test
func (r *CacheKeyStruct) TestAnswersKey(userID string) string {
	return fmt.Sprintf("user:%s:active_test:answers", userID)
}

// AssessmentEventsChannel returns the Redis PubSub channel for a user's assessment lifecycle events
func (r *CacheKeyStruct) AssessmentEventsChannel(userID string) string {
	return fmt.Sprintf("assessment:%s:events", userID)
}

var CacheKey = NewCacheKeyStruct()
