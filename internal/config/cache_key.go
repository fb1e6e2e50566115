package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key for a student's login session (JTI).
func (r *CacheKeyStruct) StudentLoginKey(rollNumber int) string {
	return fmt.Sprintf("login:student:%d", rollNumber)
}

// TakeExamSessionKey returns the cache key for a student's exam-taking
// session state (current exam, submission, pinned order, tokens).
func (r *CacheKeyStruct) TakeExamSessionKey(rollNumber int) string {
	return fmt.Sprintf("takeexam:student:%d", rollNumber)
}

var CacheKey = NewCacheKeyStruct()
