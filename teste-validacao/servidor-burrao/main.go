package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "mensagem recebida de %s\n", r.Header.Get("X-User-ID"))
		fmt.Println("Log: mensagem recebida no upstream burrão")
	})
	fmt.Println("Upstream de teste rodando em http://localhost:8082")
	err := http.ListenAndServe(":8082", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
