package codegen

// supportHeader holds the conversion primitives the glue units call:
// builtin and cast conversions, capsule construction and the module
// descriptor types. Conversions return nonzero on success and leave a
// Python exception set on failure.
const supportHeader = `// Code generated by capsulegen. DO NOT EDIT.

#ifndef CAPSULE_SUPPORT_H
#define CAPSULE_SUPPORT_H

#include <Python.h>
#include <cstring>
#include <string>
#include <stdint.h>

struct CapsuleSubmodule {
    const char* name;
    PyMethodDef* methods;
};

struct CapsuleModuleDef {
    const char* name;
    PyMethodDef* functions;
    CapsuleSubmodule* submodules;
};

template <class T>
struct typecast {
    static T* from(void* ptr) { return static_cast<T*>(ptr); }
};

static inline bool
string_equal(const char* a, const char* b)
{
    return std::strcmp(a, b) == 0;
}

// A null pointer wraps as None.
static PyObject*
pycapsule_new(const void* ptr, const char* capsule, const char* classname)
{
    if (!ptr) {
        Py_RETURN_NONE;
    }
    PyObject* cap = PyCapsule_New(const_cast<void*>(ptr), capsule, NULL);
    if (!cap) {
        return NULL;
    }
    if (PyCapsule_SetContext(cap, const_cast<char*>(classname)) != 0) {
        Py_DECREF(cap);
        return NULL;
    }
    return cap;
}

// Builtins.

static inline int py_builtin_to(PyObject* obj, bool* out)
{
    int v = PyObject_IsTrue(obj);
    if (v < 0) return 0;
    *out = v != 0;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, unsigned* out)
{
    unsigned long v = PyLong_AsUnsignedLong(obj);
    if (PyErr_Occurred()) return 0;
    *out = (unsigned)v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, unsigned long* out)
{
    unsigned long v = PyLong_AsUnsignedLong(obj);
    if (PyErr_Occurred()) return 0;
    *out = v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, unsigned long long* out)
{
    unsigned long long v = PyLong_AsUnsignedLongLong(obj);
    if (PyErr_Occurred()) return 0;
    *out = v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, long long* out)
{
    long long v = PyLong_AsLongLong(obj);
    if (PyErr_Occurred()) return 0;
    *out = v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, double* out)
{
    double v = PyFloat_AsDouble(obj);
    if (PyErr_Occurred()) return 0;
    *out = v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, float* out)
{
    double v;
    if (!py_builtin_to(obj, &v)) return 0;
    *out = (float)v;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, std::string* out)
{
    Py_ssize_t len;
    const char* s = PyUnicode_AsUTF8AndSize(obj, &len);
    if (!s) return 0;
    out->assign(s, len);
    return 1;
}

static inline int py_builtin_to(PyObject* obj, const char** out)
{
    const char* s = PyUnicode_AsUTF8(obj);
    if (!s) return 0;
    *out = s;
    return 1;
}

static inline int py_builtin_to(PyObject* obj, void** out)
{
    if (obj == Py_None) {
        *out = NULL;
        return 1;
    }
    void* p = PyLong_AsVoidPtr(obj);
    if (PyErr_Occurred()) return 0;
    *out = p;
    return 1;
}

static inline PyObject* py_builtin_from(bool v) { return PyBool_FromLong(v); }
static inline PyObject* py_builtin_from(unsigned v) { return PyLong_FromUnsignedLong(v); }
static inline PyObject* py_builtin_from(unsigned long v) { return PyLong_FromUnsignedLong(v); }
static inline PyObject* py_builtin_from(unsigned long long v) { return PyLong_FromUnsignedLongLong(v); }
static inline PyObject* py_builtin_from(long long v) { return PyLong_FromLongLong(v); }
static inline PyObject* py_builtin_from(double v) { return PyFloat_FromDouble(v); }
static inline PyObject* py_builtin_from(float v) { return PyFloat_FromDouble(v); }
static inline PyObject* py_builtin_from(const std::string& v) { return PyUnicode_FromStringAndSize(v.data(), v.size()); }
static inline PyObject* py_builtin_from(const char* v) { return PyUnicode_FromString(v); }
static inline PyObject* py_builtin_from(void* v) { return PyLong_FromVoidPtr(v); }

// Casts. The native side only needs to be constructible from, and
// convertible to, the matching builtin.

template <class T>
int py_bool_to(PyObject* obj, T& out)
{
    bool v;
    if (!py_builtin_to(obj, &v)) return 0;
    out = v;
    return 1;
}

template <class T>
int py_str_to(PyObject* obj, T& out)
{
    Py_ssize_t len;
    const char* s = PyUnicode_AsUTF8AndSize(obj, &len);
    if (!s) return 0;
    out = T(s, len);
    return 1;
}

template <class T>
int py_int_to(PyObject* obj, T& out)
{
    long long v;
    if (!py_builtin_to(obj, &v)) return 0;
    out = (T)v;
    return 1;
}

template <class T>
int py_float_to(PyObject* obj, T& out)
{
    double v;
    if (!py_builtin_to(obj, &v)) return 0;
    out = (T)v;
    return 1;
}

template <class T>
PyObject* py_bool_from(const T& v) { return PyBool_FromLong((bool)v); }

template <class T>
PyObject* py_str_from(const T& v) { return PyUnicode_FromStringAndSize(v.data(), v.size()); }

template <class T>
PyObject* py_int_from(const T& v) { return PyLong_FromLongLong((long long)v); }

template <class T>
PyObject* py_float_from(const T& v) { return PyFloat_FromDouble((double)v); }

#endif // CAPSULE_SUPPORT_H
`
