// Package application contém os casos de uso (regras de aplicação) do
// controle de flood e do limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Check(identity, scope) injeta o relógio e retorna uma Decision.
package application
