package apiclient

import "fmt"

// Typed wrappers over Client.get/post so the per-resource files stay
// free of decode boilerplate.

// getResource GETs path and decodes the body into a T.
func getResource[T any](c *Client, path string) (*T, error) {
	var out T
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// createResource POSTs body to path and decodes the response into a T.
func createResource[T any](c *Client, path string, body any) (*T, error) {
	var out T
	if err := c.post(path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// resourcePath is fmt.Sprintf named for what it builds here.
func resourcePath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
