package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/patric-chuzhbe/securevault/internal/models"
)

func ExampleRouter_GetPing() {
	server, _, _, _ := setupTestRouter(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/ping")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)

	// Output:
	// Status Code: 200
}

func ExampleRouter_PostApiauthregister() {
	server, _, _, _ := setupTestRouter(nil)
	defer server.Close()

	body, err := json.Marshal(models.CredentialsRequest{Email: "Alice@Example.com", Password: "p@ss1"})
	if err != nil {
		panic(err)
	}

	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var created models.UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Email:", created.Email)
	fmt.Println("Has token:", resp.Header.Get("Authorization") != "")

	// Output:
	// Status Code: 201
	// Email: alice@example.com
	// Has token: true
}

func ExampleRouter_PostApipasswords() {
	server, _, _, _ := setupTestRouter(nil)
	defer server.Close()

	body, err := json.Marshal(models.CredentialsRequest{Email: "alice@example.com", Password: "p@ss1"})
	if err != nil {
		panic(err)
	}
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	resp.Body.Close()
	token := resp.Header.Get("Authorization")

	body, err = json.Marshal(models.NewEntryRequest{Website: "example.com", Username: "alice", Password: "p@ss1"})
	if err != nil {
		panic(err)
	}
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/passwords", bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var entry models.PasswordEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		panic(err)
	}

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Website:", entry.Website)
	fmt.Println("Username:", entry.Username)

	// Output:
	// Status Code: 201
	// Website: example.com
	// Username: alice
}

func ExampleRouter_GetDashboard() {
	server, _, _, _ := setupTestRouter(nil)
	defer server.Close()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(server.URL + "/")
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status Code:", resp.StatusCode)
	fmt.Println("Location:", resp.Header.Get("Location"))

	// Output:
	// Status Code: 303
	// Location: /login
}
