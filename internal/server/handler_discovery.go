package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

var apiEndpoints = []endpointInfo{
	{"/api/v1/render", []string{"POST"}, "Render a CWL document without storing it"},
	{"/api/v1/graphs", []string{"GET", "POST"}, "List cached graphs or render and cache a document"},
	{"/api/v1/graphs/{id}", []string{"GET", "DELETE"}, "Single cached graph"},
	{"/api/v1/graphs/{id}/dot", []string{"GET"}, "DOT source of a cached graph"},
	{"/api/v1/health", []string{"GET"}, "Server health and version"},
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	endpoints := append([]endpointInfo(nil), apiEndpoints...)
	if s.ui != nil {
		endpoints = append(endpoints, endpointInfo{"/ui/", []string{"GET"}, "Browse and create graphs in a web page"})
	}
	respondOK(w, RequestIDFromContext(r.Context()), discoveryResponse{
		Name:        "cwlviz API",
		Version:     "v1",
		Description: "Render CWL workflows as Graphviz DOT graphs",
		Endpoints:   endpoints,
	})
}
