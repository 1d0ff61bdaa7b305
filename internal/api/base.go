package api

// DefaultBaseURL is the single source of truth for the portal API target.
const DefaultBaseURL = "http://localhost:8000"
